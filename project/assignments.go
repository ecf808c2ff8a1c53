package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/store"
)

// AssignUser assigns assignee to a project. A non-empty resource narrows the
// assignment to that resource. The project must exist.
func (s *Service) AssignUser(ctx context.Context, projectID, assignee, resource string) (*Assignment, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, apperr.Invalid("assignee", "cannot be empty")
	}

	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}

	a := &Assignment{
		ProjectID:  projectID,
		Assignee:   assignee,
		Resource:   resource,
		AssignedAt: s.opts.clock().UTC(),
	}

	policies := s.policies.UserAssignments(projectID, assignee, resource)

	if err := s.writer.WriteAll(ctx, assignmentEntity{a: a}, policies); err != nil {
		return nil, fmt.Errorf("failed to assign %s to project %s: %w", assignee, projectID, err)
	}

	return a, nil
}

// RevokeUser removes an assignment. An empty resource revokes every
// assignment the user holds in the project. The project must exist.
func (s *Service) RevokeUser(ctx context.Context, projectID, assignee, resource string) error {
	if strings.TrimSpace(assignee) == "" {
		return apperr.Invalid("assignee", "cannot be empty")
	}

	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}

	policies := s.policies.UserAssignments(projectID, assignee, resource)

	if resource == "" {
		// The prefix policies double as the keys of the project-wide
		// assignment; add every narrower one found under the prefix.
		resources, err := s.assignedResources(ctx, policies[0])
		if err != nil {
			return err
		}

		for _, r := range resources {
			policies = append(policies, s.policies.UserAssignments(projectID, assignee, r)...)
		}
	}

	if err := s.writer.DeleteAll(ctx, "assignment", policies); err != nil {
		return fmt.Errorf("failed to revoke %s from project %s: %w", assignee, projectID, err)
	}

	return nil
}

// ListAssignees returns every assignment in a project.
func (s *Service) ListAssignees(ctx context.Context, projectID string) ([]*Assignment, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}

	return s.queryAssignments(ctx, s.policies.AssigneesQuery(projectID))
}

// ListUserProjects returns every project assignment held by a user.
func (s *Service) ListUserProjects(ctx context.Context, assignee string) ([]*Assignment, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, apperr.Invalid("assignee", "cannot be empty")
	}

	return s.queryAssignments(ctx, s.policies.UserProjectsQuery(assignee))
}

func (s *Service) assignedResources(ctx context.Context, prefix index.Policy) ([]string, error) {
	assignments, err := s.queryAssignments(ctx, prefix)
	if err != nil {
		return nil, err
	}

	resources := make([]string, 0, len(assignments))
	for _, a := range assignments {
		resources = append(resources, a.Resource)
	}

	return resources, nil
}

func (s *Service) queryAssignments(ctx context.Context, policy index.Policy) ([]*Assignment, error) {
	var out []*Assignment

	err := store.QueryAll(ctx, s.store, policy.Query(s.opts.defaultPageSize, ""), func(rec *store.Record) error {
		a, err := decodeAssignment(rec.Body)
		if err != nil {
			return err
		}

		out = append(out, a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments in %s: %w", policy.PartitionKey, err)
	}

	return out, nil
}
