// Package project maintains projects across their by-id and by-state
// indexes, and user assignments across their by-project and by-user indexes.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/types"
)

// Service is the project index service. It is safe for concurrent use; it
// holds no state of its own beyond its collaborators.
type Service struct {
	store    store.Store
	writer   *index.Writer
	policies index.ProjectPolicies
	logger   types.Logger
	opts     *Options
}

// New creates a Service.
func New(s store.Store, w *index.Writer, logger types.Logger, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, errors.New("store cannot be nil")
	}

	if w == nil {
		return nil, errors.New("index writer cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid project service options: %w", err)
	}

	return &Service{
		store:  s,
		writer: w,
		logger: logger.WithField("component", "project_service"),
		opts:   options,
	}, nil
}

// Create validates p, assigns an id when it has none and writes the by-id
// and both by-state records. A duplicate id fails with [store.ErrConflict].
func (s *Service) Create(ctx context.Context, p Project) (*Project, error) {
	if err := validateFields(p.Name, p.Owner); err != nil {
		return nil, err
	}

	if err := validateState(p.State); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = s.opts.newID()
	} else if err := validateID(p.ID); err != nil {
		return nil, err
	}

	now := s.opts.clock().UTC()
	p.CreatedAt = now
	p.StateChangedAt = now
	p.PreviousState = ""
	p.PreviousStateChangedAt = time.Time{}

	byID := s.policies.ByID(p.ID)

	version, err := s.putByID(ctx, &p, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create project %s: %w", p.ID, err)
	}

	p.Version = version

	byState := s.policies.ByState(string(p.State), p.StateChangedAt, p.ID)

	if err := s.writer.WriteAll(ctx, projectEntity{p: &p}, byState); err != nil {
		return nil, index.ExtendPartial(err, "project", "create", []index.Policy{byID}, byState)
	}

	s.logger.WithFields(map[string]any{"project_id": p.ID, "state": p.State}).Debug("Project created")

	return &p, nil
}

// Get returns the project with the given id, or an error wrapping
// [apperr.ErrNotFound].
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, apperr.Invalid("id", "cannot be empty")
	}

	policy := s.policies.ByID(id)

	rec, err := s.store.Get(ctx, policy.PartitionKey, policy.SortKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("project %s: %w", id, apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	return decodeProject(rec.Body, rec.Version)
}

// ListByState returns one page of the projects in state, ordered by the
// instant they entered it. A zero pageSize uses the configured default. The
// returned cursor is empty once no further projects remain.
func (s *Service) ListByState(ctx context.Context, state State, order index.Order, pageSize int, cursor string) (*Page, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}

	if pageSize < 0 {
		return nil, apperr.Invalid("pageSize", "cannot be negative")
	}

	if pageSize == 0 {
		pageSize = s.opts.defaultPageSize
	}

	q := s.policies.ByStateQuery(string(state), order).Query(pageSize, cursor)

	page, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s projects: %w", state, err)
	}

	out := &Page{
		Items:  make([]*Project, 0, len(page.Records)),
		Cursor: page.Cursor,
	}

	for _, rec := range page.Records {
		p, err := decodeProject(rec.Body, 0)
		if err != nil {
			return nil, err
		}

		out.Items = append(out.Items, p)
	}

	return out, nil
}

// Update rewrites the name, owner and description of a project in all of
// its records. The by-id record is guarded by p.Version when it is non-zero
// (by the version just read otherwise); a stale token fails with
// [store.ErrConflict]. State changes go through [Service.TransitionState].
func (s *Service) Update(ctx context.Context, p Project) (*Project, error) {
	if err := validateFields(p.Name, p.Owner); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if p.State != "" && p.State != current.State {
		return nil, apperr.Invalid("state", "cannot be changed by an update, use a state transition")
	}

	expected := current.Version
	if p.Version != 0 {
		expected = p.Version
	}

	updated := *current
	updated.Name = p.Name
	updated.Owner = p.Owner
	updated.Description = p.Description

	version, err := s.putByID(ctx, &updated, expected)
	if err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", p.ID, err)
	}

	updated.Version = version

	byState := s.policies.ByState(string(updated.State), updated.StateChangedAt, updated.ID)

	if err := s.writer.WriteAll(ctx, projectEntity{p: &updated}, byState); err != nil {
		return nil, index.ExtendPartial(err, "project", "update", []index.Policy{s.policies.ByID(p.ID)}, byState)
	}

	return &updated, nil
}

// TransitionState moves a project to newState. Moving to the current state
// is a no-op with Changed false.
//
// The by-id record is updated first and records the previous state; the old
// by-state records are then deleted and new ones written, and finally the
// marker is cleared. These steps are not atomic: a failure after the first
// step returns an error wrapping *[index.PartialWriteError] and leaves the
// marker in place for [Service.Repair].
func (s *Service) TransitionState(ctx context.Context, id string, newState State) (*TransitionResult, error) {
	if err := validateState(newState); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.TransitionPending() {
		if current, err = s.repair(ctx, current); err != nil {
			return nil, err
		}
	}

	if current.State == newState {
		return &TransitionResult{Project: current, Changed: false}, nil
	}

	next := *current
	next.PreviousState = current.State
	next.PreviousStateChangedAt = current.StateChangedAt
	next.State = newState
	next.StateChangedAt = s.opts.clock().UTC()

	version, err := s.putByID(ctx, &next, current.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to transition project %s to %s: %w", id, newState, err)
	}

	next.Version = version

	if err := s.moveStateIndexes(ctx, &next); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]any{
		"project_id": id,
		"from":       next.PreviousState,
		"to":         newState,
	}).Info("Project state changed")

	final, err := s.clearMarker(ctx, &next)
	if err != nil {
		return nil, err
	}

	return &TransitionResult{Project: final, Changed: true}, nil
}

// Repair completes a state transition that was interrupted after the by-id
// record was updated. It reports whether anything needed repairing. Running
// it on a consistent project is a no-op.
func (s *Service) Repair(ctx context.Context, id string) (*Project, bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if !current.TransitionPending() {
		return current, false, nil
	}

	repaired, err := s.repair(ctx, current)
	if err != nil {
		return nil, false, err
	}

	return repaired, true, nil
}

func (s *Service) repair(ctx context.Context, p *Project) (*Project, error) {
	s.logger.WithFields(map[string]any{
		"project_id":     p.ID,
		"previous_state": p.PreviousState,
		"state":          p.State,
	}).Error("Repairing interrupted state transition")

	if err := s.moveStateIndexes(ctx, p); err != nil {
		return nil, err
	}

	return s.clearMarker(ctx, p)
}

// moveStateIndexes deletes the by-state records of p's previous state and
// writes those of its current state.
func (s *Service) moveStateIndexes(ctx context.Context, p *Project) error {
	byID := s.policies.ByID(p.ID)
	oldPolicies := s.policies.ByState(string(p.PreviousState), p.PreviousStateChangedAt, p.ID)
	newPolicies := s.policies.ByState(string(p.State), p.StateChangedAt, p.ID)

	if err := s.writer.DeleteAll(ctx, "project", oldPolicies); err != nil {
		return fmt.Errorf("failed to remove %s indexes of project %s: %w", p.PreviousState, p.ID,
			index.ExtendPartial(err, "project", "transition", []index.Policy{byID}, append(oldPolicies, newPolicies...)))
	}

	if err := s.writer.WriteAll(ctx, projectEntity{p: p}, newPolicies); err != nil {
		return fmt.Errorf("failed to write %s indexes of project %s: %w", p.State, p.ID,
			index.ExtendPartial(err, "project", "transition", append([]index.Policy{byID}, oldPolicies...), newPolicies))
	}

	return nil
}

func (s *Service) clearMarker(ctx context.Context, p *Project) (*Project, error) {
	cleared := *p
	cleared.PreviousState = ""
	cleared.PreviousStateChangedAt = time.Time{}

	version, err := s.putByID(ctx, &cleared, p.Version)
	if err != nil {
		byID := s.policies.ByID(p.ID)
		byState := s.policies.ByState(string(p.State), p.StateChangedAt, p.ID)

		return nil, fmt.Errorf("failed to finish transition of project %s: %w", p.ID,
			index.ExtendPartial(err, "project", "transition", byState, []index.Policy{byID}))
	}

	cleared.Version = version

	return &cleared, nil
}

func (s *Service) putByID(ctx context.Context, p *Project, expectedVersion int64) (int64, error) {
	policy := s.policies.ByID(p.ID)

	body, err := projectEntity{p: p}.EncodeRecord(policy)
	if err != nil {
		return 0, err
	}

	rec := &store.Record{
		PartitionKey: policy.PartitionKey,
		SortKey:      policy.SortKey,
		Body:         body,
	}

	return s.store.Put(ctx, rec, &expectedVersion)
}

func validateFields(name, owner string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Invalid("name", "cannot be empty")
	}

	if strings.TrimSpace(owner) == "" {
		return apperr.Invalid("owner", "cannot be empty")
	}

	return nil
}

func validateState(state State) error {
	if state == "" {
		return apperr.Invalid("state", "cannot be empty")
	}

	if !state.Valid() {
		return apperr.Invalid("state", fmt.Sprintf("%q is not an allowed state", state))
	}

	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Invalid("id", "must be a UUID")
	}

	return nil
}
