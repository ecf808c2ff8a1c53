package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/store"
)

// AssignResource assigns a user to an existing resource.
func (s *Service) AssignResource(ctx context.Context, projectID, resourcePath, assignee string) (*Assignment, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, apperr.Invalid("assignee", "cannot be empty")
	}

	if err := s.requireResource(ctx, projectID, resourcePath); err != nil {
		return nil, err
	}

	a := &Assignment{
		ProjectID:  projectID,
		Path:       resourcePath,
		Assignee:   assignee,
		AssignedAt: s.opts.clock().UTC(),
	}

	policy := s.policies.UserAssignment(projectID, resourcePath, assignee)

	if err := s.writer.WriteAll(ctx, assignmentEntity{a: a}, policy.List()); err != nil {
		return nil, fmt.Errorf("failed to assign %s to %s: %w", assignee, resourcePath, err)
	}

	return a, nil
}

// UnassignResource removes a resource assignment. Removing an assignment
// that does not exist is not an error.
func (s *Service) UnassignResource(ctx context.Context, projectID, resourcePath, assignee string) error {
	if strings.TrimSpace(assignee) == "" {
		return apperr.Invalid("assignee", "cannot be empty")
	}

	if err := validateKey(projectID, resourcePath); err != nil {
		return err
	}

	policy := s.policies.UserAssignment(projectID, resourcePath, assignee)

	if err := s.writer.DeleteAll(ctx, "resource_assignment", policy.List()); err != nil {
		return fmt.Errorf("failed to unassign %s from %s: %w", assignee, resourcePath, err)
	}

	return nil
}

// ListAssignedResources returns every resource assigned to a user.
func (s *Service) ListAssignedResources(ctx context.Context, assignee string) ([]*Assignment, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, apperr.Invalid("assignee", "cannot be empty")
	}

	var out []*Assignment

	q := s.policies.UserAssignmentsQuery(assignee).Query(s.opts.pageSize, "")

	err := store.QueryAll(ctx, s.store, q, func(rec *store.Record) error {
		a, err := decodeAssignment(rec.Body)
		if err != nil {
			return err
		}

		out = append(out, a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources assigned to %s: %w", assignee, err)
	}

	return out, nil
}

func (s *Service) requireResource(ctx context.Context, projectID, resourcePath string) error {
	if err := validateKey(projectID, resourcePath); err != nil {
		return err
	}

	latest := s.policies.Latest(projectID, resourcePath)

	if _, err := s.store.Get(ctx, latest.PartitionKey, latest.SortKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("resource %s in project %s: %w", resourcePath, projectID, apperr.ErrNotFound)
		}

		return fmt.Errorf("failed to read resource %s: %w", resourcePath, err)
	}

	return nil
}
