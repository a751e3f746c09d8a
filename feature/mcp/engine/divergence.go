package engine

import (
	"context"
	"fmt"

	"mcp-manager/core/reconcile"
	"mcp-manager/core/utils"
	"mcp-manager/feature/mcp/models"
)

// Difference is one pair of clients whose own config files disagree.
type Difference struct {
	ClientA string `json:"clientA"`
	ClientB string `json:"clientB"`
	Message string `json:"message"`
	Diff    string `json:"diff,omitempty"`
}

// DivergenceReport is the result of CheckConfigsDiffer.
type DivergenceReport struct {
	ConfigsDiffer bool         `json:"configsDiffer"`
	Differences   []Difference `json:"differences"`
	// Checked lists the compared clients, empty when the check was skipped.
	Checked []string `json:"checked"`
}

// CheckConfigsDiffer compares the own config files of the enabled clients,
// the first one against each of the others. The check is skipped, reporting
// no difference, when client sync is disabled or fewer than two clients are
// enabled.
func (e *Engine) CheckConfigsDiffer(ctx context.Context) (DivergenceReport, error) {
	report := DivergenceReport{Differences: []Difference{}, Checked: []string{}}

	current := e.settings.Current()
	ids := current.EnabledClientIDs()
	if !current.SyncClients || len(ids) < 2 {
		return report, nil
	}

	sources := make([]reconcile.Source[models.ServerDefinition], 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return DivergenceReport{}, err
		}
		original, err := e.configs.ReadOriginal(id)
		if err != nil {
			return DivergenceReport{}, fmt.Errorf("failed to read config of client %s: %w", id, err)
		}
		sources = append(sources, reconcile.Source[models.ServerDefinition]{ID: id, Items: original})
	}

	diffs := reconcile.CompareToFirst(sources,
		func(a, b map[string]models.ServerDefinition) bool {
			return utils.StructuralEqual(a, b)
		},
		func(a, b map[string]models.ServerDefinition) string {
			return utils.StructuralDiff(a, b)
		})

	for _, d := range diffs {
		report.Differences = append(report.Differences, Difference{
			ClientA: d.A,
			ClientB: d.B,
			Message: fmt.Sprintf("Configurations differ between %s and %s", displayName(current, d.A), displayName(current, d.B)),
			Diff:    d.Diff,
		})
	}
	report.ConfigsDiffer = len(report.Differences) > 0
	report.Checked = ids
	return report, nil
}

func displayName(s *models.Settings, id string) string {
	if c, ok := s.Clients[id]; ok && c.Name != "" && c.Name != id {
		return fmt.Sprintf("%s (%s)", c.Name, id)
	}
	return id
}
