// Package plan reconstructs the research plan an agent announces in-band
// during a turn: an ordered task list with per-task lifecycle state.
package plan

import (
	"encoding/json"
	"strings"
)

// Status is a task lifecycle state. Transitions are monotone:
// Pending < Running < Completed, and a task never moves backward.
type Status int

const (
	Pending Status = iota
	Running
	Completed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "pending"
	}
}

// Task is one entry of the plan. ID may be empty; identity then falls
// back to the label.
type Task struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Status Status `json:"status"`
}

// taskDescriptor is one element of a PlanInit/PlanUpdate payload array:
// either a bare label string or an object.
type taskDescriptor struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// stepRef is a StepStart/StepEnd payload: an object or a bare string.
type stepRef struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Label       string `json:"label"`
}

// Tracker holds the plan state for one turn. Not safe for concurrent use.
type Tracker struct {
	tasks   []*Task
	byID    map[string]*Task
	byLabel map[string]*Task
}

func NewTracker() *Tracker {
	return &Tracker{
		byID:    make(map[string]*Task),
		byLabel: make(map[string]*Task),
	}
}

// Apply folds one marker into the plan. Malformed payloads are ignored;
// a bad marker must not disturb the rest of the turn.
func (t *Tracker) Apply(m Marker) {
	switch m.Kind {
	case MarkerPlanInit, MarkerPlanUpdate:
		t.applyPlan(m.Payload)
	case MarkerStepStart:
		if task := t.resolve(m.Payload); task != nil && task.Status < Running {
			task.Status = Running
		}
	case MarkerStepEnd:
		if task := t.resolve(m.Payload); task != nil {
			task.Status = Completed
		}
	}
}

// Tasks returns the plan in announcement order.
func (t *Tracker) Tasks() []Task {
	out := make([]Task, len(t.tasks))
	for i, task := range t.tasks {
		out[i] = *task
	}
	return out
}

func (t *Tracker) applyPlan(payload string) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return
	}
	for _, elem := range raw {
		var label string
		if err := json.Unmarshal(elem, &label); err == nil {
			t.add(Task{Label: label})
			continue
		}
		var desc taskDescriptor
		if err := json.Unmarshal(elem, &desc); err != nil {
			continue
		}
		t.add(Task{ID: desc.ID, Label: desc.Description, Status: parseStatus(desc.Status)})
	}
}

// add appends a task unless its identity key was already announced.
// First occurrence wins; later duplicates are dropped, not merged.
func (t *Tracker) add(task Task) {
	if task.Label == "" && task.ID == "" {
		return
	}
	if task.ID != "" {
		if _, dup := t.byID[task.ID]; dup {
			return
		}
	} else if _, dup := t.byLabel[task.Label]; dup {
		return
	}

	stored := &Task{ID: task.ID, Label: task.Label, Status: task.Status}
	t.tasks = append(t.tasks, stored)
	if stored.ID != "" {
		t.byID[stored.ID] = stored
	}
	if stored.Label != "" {
		if _, seen := t.byLabel[stored.Label]; !seen {
			t.byLabel[stored.Label] = stored
		}
	}
}

// resolve looks a step reference up by id, falling back to label. Step
// events never create tasks; an unknown reference is a no-op.
func (t *Tracker) resolve(payload string) *Task {
	var ref stepRef
	if err := json.Unmarshal([]byte(payload), &ref); err != nil {
		// Bare string form: either a JSON string or raw text.
		var label string
		if err := json.Unmarshal([]byte(payload), &label); err != nil {
			label = strings.TrimSpace(payload)
		}
		return t.byLabel[label]
	}
	if ref.ID != "" {
		if task, ok := t.byID[ref.ID]; ok {
			return task
		}
	}
	for _, label := range []string{ref.Label, ref.Description} {
		if label == "" {
			continue
		}
		if task, ok := t.byLabel[label]; ok {
			return task
		}
	}
	return nil
}

func parseStatus(s string) Status {
	switch strings.ToLower(s) {
	case "running", "in_progress":
		return Running
	case "completed", "done":
		return Completed
	default:
		return Pending
	}
}
