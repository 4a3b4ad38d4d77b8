// Package tools tracks which tools the agent is currently executing, for
// UI activity indication.
package tools

import "github.com/google/uuid"

// Active is one in-flight tool invocation.
type Active struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tracker holds the active tool set for one turn. Clearing on any prose
// delta is a heuristic: once the model is producing text again, no tool
// can still be blocking it. The upstream does not reliably emit explicit
// end events, so this is best-effort rather than a protocol guarantee.
type Tracker struct {
	active []Active
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Start records a tool invocation. A tool already active under the same
// name is kept as-is; the first announcement wins.
func (t *Tracker) Start(name, description string) {
	if name == "" {
		return
	}
	for _, a := range t.active {
		if a.Name == name {
			return
		}
	}
	t.active = append(t.active, Active{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	})
}

// Clear drops every active tool.
func (t *Tracker) Clear() {
	t.active = nil
}

// Active returns a snapshot of the current set.
func (t *Tracker) Active() []Active {
	out := make([]Active, len(t.active))
	copy(out, t.active)
	return out
}
