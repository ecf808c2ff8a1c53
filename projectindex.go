// Package projectindex is the caller-facing API of the project index: it
// wires the project and resource services to one store, one index writer and
// an optional change-event publisher.
//
// Every mutating call publishes a [notify.Event] after it succeeds. Publish
// failures are logged and counted; they never undo the mutation.
package projectindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/projectindex/project"
	"github.com/slackmgr/projectindex/resource"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/types"
)

// Service exposes project and resource operations over one store.
type Service struct {
	projects  *project.Service
	resources *resource.Service
	publisher notify.Publisher
	logger    types.Logger
	opts      *Options
}

// New creates a Service over s, keeping resource content in blobs.
func New(s store.Store, blobs resource.BlobStore, logger types.Logger, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, errors.New("store cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid service options: %w", err)
	}

	writer, err := index.NewWriter(s, logger, options.indexOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create index writer: %w", err)
	}

	projects, err := project.New(s, writer, logger, options.projectOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create project service: %w", err)
	}

	resources, err := resource.New(s, writer, blobs, logger, options.resourceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource service: %w", err)
	}

	return &Service{
		projects:  projects,
		resources: resources,
		publisher: options.publisher,
		logger:    logger,
		opts:      options,
	}, nil
}

// Projects returns the underlying project service.
func (s *Service) Projects() *project.Service {
	return s.projects
}

// Resources returns the underlying resource service.
func (s *Service) Resources() *resource.Service {
	return s.resources
}

// ==================== Projects ====================

func (s *Service) CreateProject(ctx context.Context, p project.Project) (*project.Project, error) {
	created, err := s.projects.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &notify.Event{
		Type:      notify.ProjectCreated,
		ProjectID: created.ID,
		State:     string(created.State),
		Actor:     created.Owner,
	})

	return created, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*project.Project, error) {
	return s.projects.Get(ctx, id)
}

// ListProjectsByState returns one page of projects in state, ordered by the
// time they entered it. A zero pageSize uses the project service default.
func (s *Service) ListProjectsByState(ctx context.Context, state project.State, order index.Order, pageSize int, cursor string) (*project.Page, error) {
	return s.projects.ListByState(ctx, state, order, pageSize, cursor)
}

// UpdateProject rewrites the descriptive fields of a project. State changes
// go through [Service.TransitionProjectState].
func (s *Service) UpdateProject(ctx context.Context, p project.Project) (*project.Project, error) {
	updated, err := s.projects.Update(ctx, p)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &notify.Event{
		Type:      notify.ProjectUpdated,
		ProjectID: updated.ID,
		State:     string(updated.State),
	})

	return updated, nil
}

// TransitionProjectState moves a project to newState. Moving to the current
// state changes nothing and publishes nothing.
func (s *Service) TransitionProjectState(ctx context.Context, id string, newState project.State) (*project.TransitionResult, error) {
	result, err := s.projects.TransitionState(ctx, id, newState)
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.publish(ctx, &notify.Event{
			Type:      notify.ProjectStateChanged,
			ProjectID: id,
			State:     string(result.Project.State),
		})
	}

	return result, nil
}

// RepairProject finishes an interrupted state transition. It reports whether
// anything was repaired.
func (s *Service) RepairProject(ctx context.Context, id string) (*project.Project, bool, error) {
	return s.projects.Repair(ctx, id)
}

// AssignUser grants user access to a project, or to one resource of it when
// resourcePath is not empty.
func (s *Service) AssignUser(ctx context.Context, projectID, user, resourcePath string) (*project.Assignment, error) {
	assignment, err := s.projects.AssignUser(ctx, projectID, user, resourcePath)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &notify.Event{
		Type:      notify.UserAssigned,
		ProjectID: projectID,
		Path:      resourcePath,
		Actor:     user,
	})

	return assignment, nil
}

func (s *Service) RevokeUser(ctx context.Context, projectID, user, resourcePath string) error {
	if err := s.projects.RevokeUser(ctx, projectID, user, resourcePath); err != nil {
		return err
	}

	s.publish(ctx, &notify.Event{
		Type:      notify.UserRevoked,
		ProjectID: projectID,
		Path:      resourcePath,
		Actor:     user,
	})

	return nil
}

func (s *Service) ListAssignees(ctx context.Context, projectID string) ([]*project.Assignment, error) {
	return s.projects.ListAssignees(ctx, projectID)
}

func (s *Service) ListUserProjects(ctx context.Context, user string) ([]*project.Assignment, error) {
	return s.projects.ListUserProjects(ctx, user)
}

// ==================== Resources ====================

// GetCurrentResourceVersion returns the highest stored version, or a version
// with Index 0 when the resource has none.
func (s *Service) GetCurrentResourceVersion(ctx context.Context, projectID, resourcePath string) (*resource.Version, error) {
	return s.resources.GetCurrentVersion(ctx, projectID, resourcePath)
}

func (s *Service) StoreResourceVersion(ctx context.Context, req resource.StoreRequest) (*resource.Version, error) {
	v, err := s.resources.StoreNewVersion(ctx, req)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &notify.Event{
		Type:      notify.ResourceVersionStored,
		ProjectID: v.ProjectID,
		Path:      v.Path,
		Version:   v.Index,
		Actor:     v.Author,
	})

	return v, nil
}

func (s *Service) ListResources(ctx context.Context, projectID string) ([]*resource.Resource, error) {
	return s.resources.ListResources(ctx, projectID)
}

func (s *Service) ListResourceVersions(ctx context.Context, projectID, resourcePath string) ([]*resource.Version, error) {
	return s.resources.ListVersions(ctx, projectID, resourcePath)
}

// RetrieveResourceContent returns the content of one version. Index 0 selects
// the current version.
func (s *Service) RetrieveResourceContent(ctx context.Context, projectID, resourcePath string, versionIndex int) ([]byte, *resource.Version, error) {
	return s.resources.RetrieveContent(ctx, projectID, resourcePath, versionIndex)
}

func (s *Service) LockResource(ctx context.Context, projectID, resourcePath, user string) (*resource.Version, error) {
	return s.setLock(ctx, projectID, resourcePath, user, true)
}

func (s *Service) UnlockResource(ctx context.Context, projectID, resourcePath, user string) (*resource.Version, error) {
	return s.setLock(ctx, projectID, resourcePath, user, false)
}

func (s *Service) AssignResource(ctx context.Context, projectID, resourcePath, user string) (*resource.Assignment, error) {
	return s.resources.AssignResource(ctx, projectID, resourcePath, user)
}

func (s *Service) UnassignResource(ctx context.Context, projectID, resourcePath, user string) error {
	return s.resources.UnassignResource(ctx, projectID, resourcePath, user)
}

func (s *Service) ListAssignedResources(ctx context.Context, user string) ([]*resource.Assignment, error) {
	return s.resources.ListAssignedResources(ctx, user)
}

func (s *Service) setLock(ctx context.Context, projectID, resourcePath, user string, locked bool) (*resource.Version, error) {
	v, err := s.resources.SetLock(ctx, projectID, resourcePath, user, locked)
	if err != nil {
		return nil, err
	}

	eventType := notify.ResourceUnlocked
	if locked {
		eventType = notify.ResourceLocked
	}

	s.publish(ctx, &notify.Event{
		Type:      eventType,
		ProjectID: projectID,
		Path:      resourcePath,
		Version:   v.Index,
		Actor:     user,
	})

	return v, nil
}

func (s *Service) publish(ctx context.Context, event *notify.Event) {
	event.OccurredAt = s.opts.clock().UTC()

	notify.Deliver(ctx, s.publisher, s.logger, event)
}
