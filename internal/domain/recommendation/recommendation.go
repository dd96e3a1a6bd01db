// Package recommendation defines the records produced for each matched catalogue document.
package recommendation

// productSuffixRunes is the length of the identifier suffix (a file extension such as ".txt")
// dropped when deriving the display name.
const productSuffixRunes = 4

// Candidate is a retrieved document before explanation.
type Candidate struct {
	Text     string
	ID       string
	Position int
	Score    float64
}

// Record is the full audit view of one recommendation.
type Record struct {
	ProductName     string  `json:"product_name"`
	SummaryText     string  `json:"summary_text"`
	SimilarityScore float64 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// Slim is the client-facing view of one recommendation.
type Slim struct {
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}

// New builds the full record for a candidate and its reason.
func New(c Candidate, reason string) Record {
	return Record{
		ProductName:     c.ID,
		SummaryText:     c.Text,
		SimilarityScore: c.Score,
		Reason:          reason,
	}
}

// Slim returns the client view with the identifier suffix removed from the product name.
func (r Record) Slim() Slim {
	return Slim{ProductName: DisplayName(r.ProductName), Reason: r.Reason}
}

// DisplayName drops the trailing four characters of a document identifier.
// Identifiers of four characters or fewer yield an empty name.
func DisplayName(id string) string {
	runes := []rune(id)
	if len(runes) <= productSuffixRunes {
		return ""
	}
	return string(runes[:len(runes)-productSuffixRunes])
}
