package service

import (
	"fmt"

	"github.com/noah-isme/case-routing-api/internal/models"
	appErrors "github.com/noah-isme/case-routing-api/pkg/errors"
)

// StatusGraph is the ordered workflow of case statuses. It is immutable once built.
type StatusGraph struct {
	byStatus   map[string]models.CaseStatus
	byPriority map[int]models.CaseStatus
}

// NewStatusGraph indexes statuses by identifier and priority. Priorities must be unique.
func NewStatusGraph(statuses []models.CaseStatus) (*StatusGraph, error) {
	g := &StatusGraph{
		byStatus:   make(map[string]models.CaseStatus, len(statuses)),
		byPriority: make(map[int]models.CaseStatus, len(statuses)),
	}
	for _, st := range statuses {
		if _, dup := g.byStatus[st.Status]; dup {
			return nil, appErrors.Clone(appErrors.ErrStatusGraph, fmt.Sprintf("duplicate status %q", st.Status))
		}
		if other, dup := g.byPriority[st.Priority]; dup {
			return nil, appErrors.Clone(appErrors.ErrStatusGraph, fmt.Sprintf("statuses %q and %q share priority %d", other.Status, st.Status, st.Priority))
		}
		g.byStatus[st.Status] = st
		g.byPriority[st.Priority] = st
	}
	return g, nil
}

// Lookup returns the node for status.
func (g *StatusGraph) Lookup(status string) (models.CaseStatus, bool) {
	st, ok := g.byStatus[status]
	return st, ok
}

// IsTerminal reports whether status ends the workflow. Unknown statuses are not terminal.
func (g *StatusGraph) IsTerminal(status string) bool {
	return g.byStatus[status].IsTerminal
}

// NextNonTerminal returns the status at priority+1 when it exists and is not terminal.
// A terminal status never advances, even when later statuses exist.
func (g *StatusGraph) NextNonTerminal(status string) (models.CaseStatus, bool) {
	current, ok := g.byStatus[status]
	if !ok || current.IsTerminal {
		return models.CaseStatus{}, false
	}
	next, ok := g.byPriority[current.Priority+1]
	if !ok || next.IsTerminal {
		return models.CaseStatus{}, false
	}
	return next, true
}

// Len returns the number of statuses in the workflow.
func (g *StatusGraph) Len() int {
	return len(g.byStatus)
}
