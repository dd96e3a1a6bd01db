package profile

import (
	"strings"
	"time"

	"github.com/kailas-cloud/suggest/internal/domain"
)

const (
	birthDateLayout   = "2006-01-02"
	fragmentSeparator = ", "
)

// Builder derives the canonical query string from a profile.
type Builder struct {
	now      func() time.Time
	exactAge bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the clock used for age computation.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithExactAge subtracts a year when the birthday has not yet occurred this year.
// Off by default: age is the plain difference of calendar years.
func WithExactAge(exact bool) Option {
	return func(b *Builder) { b.exactAge = exact }
}

// NewBuilder creates a query builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build renders every non-category field as "name: value" in profile order,
// replacing the birth date with "age: <bracket>", joined by ", ".
func (b *Builder) Build(p *Profile) (string, error) {
	now := b.now()
	var fragments []string

	for _, g := range p.Groups {
		for _, f := range g.Fields {
			switch f.Kind {
			case KindCategory:
				continue
			case KindBirthDate:
				age, err := b.age(f, now)
				if err != nil {
					return "", err
				}
				fragments = append(fragments, "age: "+AgeBracket(age))
			default:
				fragments = append(fragments, f.Name+": "+f.Value)
			}
		}
	}

	return strings.Join(fragments, fragmentSeparator), nil
}

func (b *Builder) age(f Field, now time.Time) (int, error) {
	born, err := time.Parse(birthDateLayout, strings.TrimSpace(f.Value))
	if err != nil {
		return 0, domain.MalformedField(f.Name, "must be formatted YYYY-MM-DD")
	}
	age := now.Year() - born.Year()
	if b.exactAge && (now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day())) {
		age--
	}
	return age, nil
}

// AgeBracket maps an age in years onto its decade label.
func AgeBracket(age int) string {
	switch {
	case age < 20:
		return "teens"
	case age < 30:
		return "20s"
	case age < 40:
		return "30s"
	case age < 50:
		return "40s"
	case age < 60:
		return "50s"
	default:
		return "60s and above"
	}
}
