package project

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/slackmgr/projectindex/index"
)

// State is the lifecycle state of a project.
type State string

const (
	Initialising State = "Initialising"
	InProgress   State = "InProgress"
	InReview     State = "InReview"
	Completed    State = "Completed"
	Cancelled    State = "Cancelled"
	Archived     State = "Archived"
)

// States lists every allowed state.
var States = []State{Initialising, InProgress, InReview, Completed, Cancelled, Archived}

// Valid reports whether s is one of [States].
func (s State) Valid() bool {
	for _, allowed := range States {
		if s == allowed {
			return true
		}
	}

	return false
}

// Project is the logical project entity.
type Project struct {
	ID          string
	Name        string
	State       State
	Owner       string
	Description string
	CreatedAt   time.Time

	// StateChangedAt is when the project entered State. It orders the
	// by-state listings.
	StateChangedAt time.Time

	// PreviousState and PreviousStateChangedAt are set while a state
	// transition is in flight and cleared once every index agrees.
	PreviousState          State
	PreviousStateChangedAt time.Time

	// Version is the token of the by-id record. It is only populated by
	// reads of that record.
	Version int64
}

// TransitionPending reports whether an earlier state transition has not
// finished updating the by-state indexes.
func (p *Project) TransitionPending() bool {
	return p.PreviousState != ""
}

// Page is one page of a by-state listing.
type Page struct {
	Items  []*Project
	Cursor string
}

// TransitionResult is returned by [Service.TransitionState].
type TransitionResult struct {
	Project *Project
	Changed bool
}

type projectRecord struct {
	Index                  string     `json:"index"`
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	State                  string     `json:"state"`
	Owner                  string     `json:"owner"`
	Description            string     `json:"description,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	StateChangedAt         time.Time  `json:"stateChangedAt"`
	PreviousState          string     `json:"previousState,omitempty"`
	PreviousStateChangedAt *time.Time `json:"previousStateChangedAt,omitempty"`
}

// projectEntity adapts a Project to [index.Entity]. Only the by-id record
// carries the in-flight transition marker.
type projectEntity struct {
	p *Project
}

func (projectEntity) Kind() string { return "project" }

func (e projectEntity) EncodeRecord(policy index.Policy) (json.RawMessage, error) {
	rec := projectRecord{
		Index:          policy.Name,
		ID:             e.p.ID,
		Name:           e.p.Name,
		State:          string(e.p.State),
		Owner:          e.p.Owner,
		Description:    e.p.Description,
		CreatedAt:      e.p.CreatedAt.UTC(),
		StateChangedAt: e.p.StateChangedAt.UTC(),
	}

	if policy.Name == index.NameProjectByID && e.p.TransitionPending() {
		changedAt := e.p.PreviousStateChangedAt.UTC()
		rec.PreviousState = string(e.p.PreviousState)
		rec.PreviousStateChangedAt = &changedAt
	}

	return json.Marshal(rec)
}

func decodeProject(body json.RawMessage, version int64) (*Project, error) {
	var rec projectRecord

	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode project record: %w", err)
	}

	p := &Project{
		ID:             rec.ID,
		Name:           rec.Name,
		State:          State(rec.State),
		Owner:          rec.Owner,
		Description:    rec.Description,
		CreatedAt:      rec.CreatedAt,
		StateChangedAt: rec.StateChangedAt,
		PreviousState:  State(rec.PreviousState),
		Version:        version,
	}

	if rec.PreviousStateChangedAt != nil {
		p.PreviousStateChangedAt = *rec.PreviousStateChangedAt
	}

	return p, nil
}

// Assignment links a user to a project, optionally narrowed to one resource.
type Assignment struct {
	ProjectID  string
	Assignee   string
	Resource   string
	AssignedAt time.Time
}

type assignmentRecord struct {
	Index      string    `json:"index"`
	ProjectID  string    `json:"projectId"`
	Assignee   string    `json:"assignee"`
	Resource   string    `json:"resource,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

type assignmentEntity struct {
	a *Assignment
}

func (assignmentEntity) Kind() string { return "assignment" }

func (e assignmentEntity) EncodeRecord(policy index.Policy) (json.RawMessage, error) {
	return json.Marshal(assignmentRecord{
		Index:      policy.Name,
		ProjectID:  e.a.ProjectID,
		Assignee:   e.a.Assignee,
		Resource:   e.a.Resource,
		AssignedAt: e.a.AssignedAt.UTC(),
	})
}

func decodeAssignment(body json.RawMessage) (*Assignment, error) {
	var rec assignmentRecord

	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode assignment record: %w", err)
	}

	return &Assignment{
		ProjectID:  rec.ProjectID,
		Assignee:   rec.Assignee,
		Resource:   rec.Resource,
		AssignedAt: rec.AssignedAt,
	}, nil
}
