package recommend

import (
	"fmt"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/recommendation"
)

// Assemble pairs every candidate with its reason and returns both views in candidate order:
// the full records for the audit trail and the slim records for the client.
func Assemble(
	candidates []recommendation.Candidate, reasons []string,
) ([]recommendation.Record, []recommendation.Slim, error) {
	if len(candidates) != len(reasons) {
		return nil, nil, fmt.Errorf("%w: %d candidates but %d reasons",
			domain.ErrEngineFailure, len(candidates), len(reasons))
	}
	records := make([]recommendation.Record, len(candidates))
	slim := make([]recommendation.Slim, len(candidates))
	for i, c := range candidates {
		records[i] = recommendation.New(c, reasons[i])
		slim[i] = records[i].Slim()
	}
	return records, slim, nil
}
