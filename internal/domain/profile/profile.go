// Package profile models the structured user profile and derives the canonical search query from it.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/suggest/internal/domain"
)

// Kind classifies a profile field by how the query builder treats it.
type Kind int

const (
	// KindText is the literal fallback: rendered as "name: value".
	KindText Kind = iota
	// KindCategory selects the category index and is excluded from the query.
	KindCategory
	// KindBirthDate is a YYYY-MM-DD date rendered as an age bracket.
	KindBirthDate
)

// Recognized field names per kind. Korean aliases are accepted from legacy clients.
var knownKeys = map[string]Kind{
	"category":      KindCategory,
	"카테고리":          KindCategory,
	"birth_date":    KindBirthDate,
	"date_of_birth": KindBirthDate,
	"birthdate":     KindBirthDate,
	"생년월일":          KindBirthDate,
}

// ClassifyKey returns the kind for a field name.
func ClassifyKey(name string) Kind {
	if k, ok := knownKeys[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k
	}
	return KindText
}

// Field is a single profile entry.
type Field struct {
	Name  string
	Value string
	Kind  Kind
}

// Group is a named, ordered set of fields (e.g. "purpose", "financial").
type Group struct {
	Name   string
	Fields []Field
}

// Profile is an ordered list of field groups. Order is significant: the query follows it.
type Profile struct {
	Groups []Group
}

// NewField creates a field, classifying it by name.
func NewField(name, value string) Field {
	return Field{Name: name, Value: value, Kind: ClassifyKey(name)}
}

// Category returns the value of the single category field.
// A profile without one yields ErrUnknownCategory; more than one is malformed.
func (p *Profile) Category() (string, error) {
	var (
		found    bool
		category string
	)
	for _, g := range p.Groups {
		for _, f := range g.Fields {
			if f.Kind != KindCategory {
				continue
			}
			if found {
				return "", domain.MalformedField(f.Name, "appears more than once")
			}
			found = true
			category = f.Value
		}
	}
	if !found {
		return "", domain.NewUnknownCategory("")
	}
	return category, nil
}

// Parse decodes a JSON profile of the form {"group": {"field": value, ...}, ...}
// keeping the input order of groups and fields. Field values must be strings,
// numbers or booleans; numbers and booleans are kept in their JSON spelling.
func Parse(data []byte) (Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return Profile{}, fmt.Errorf("%w: profile must be a JSON object", domain.ErrMalformedProfile)
	}

	var p Profile
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return Profile{}, err
		}
		g, err := readGroup(dec, name)
		if err != nil {
			return Profile{}, err
		}
		p.Groups = append(p.Groups, g)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", domain.ErrMalformedProfile, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("%w: trailing data after profile", domain.ErrMalformedProfile)
	}
	return p, nil
}

// UnmarshalJSON implements json.Unmarshaler with order-preserving decoding.
func (p *Profile) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func readGroup(dec *json.Decoder, name string) (Group, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return Group{}, domain.MalformedField(name, "must be an object")
	}
	g := Group{Name: name}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return Group{}, err
		}
		value, err := readScalar(dec, key)
		if err != nil {
			return Group{}, err
		}
		g.Fields = append(g.Fields, NewField(key, value))
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Group{}, fmt.Errorf("%w: %w", domain.ErrMalformedProfile, err)
	}
	return g, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedProfile, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected token %v", domain.ErrMalformedProfile, tok)
	}
	return key, nil
}

func readScalar(dec *json.Decoder, key string) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedProfile, err)
	}
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", domain.MalformedField(key, "is missing a value")
	default:
		return "", domain.MalformedField(key, "must be a string, number or boolean")
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err //nolint:wrapcheck // wrapped by callers with the profile context
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
