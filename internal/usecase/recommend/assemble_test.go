package recommend

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

func TestAssemble(t *testing.T) {
	candidates := []recommendation.Candidate{
		{ID: "pension.txt", Text: "Pension fund.", Score: 0.9},
		{ID: "abc", Text: "Short id.", Score: 0.4},
	}
	records, slim, err := Assemble(candidates, []string{"r1", "r2"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if records[0].ProductName != "pension.txt" || records[0].SummaryText != "Pension fund." ||
		records[0].SimilarityScore != 0.9 || records[0].Reason != "r1" {
		t.Errorf("unexpected full record %+v", records[0])
	}
	if slim[0] != (recommendation.Slim{ProductName: "pension", Reason: "r1"}) {
		t.Errorf("unexpected slim record %+v", slim[0])
	}
	if slim[1].ProductName != "" {
		t.Errorf("identifier shorter than the suffix should yield an empty name, got %q", slim[1].ProductName)
	}
}

func TestAssemble_LengthMismatch(t *testing.T) {
	_, _, err := Assemble([]recommendation.Candidate{{ID: "a.txt"}}, nil)
	if !errors.Is(err, domain.ErrEngineFailure) {
		t.Fatalf("expected ErrEngineFailure, got %v", err)
	}
}
