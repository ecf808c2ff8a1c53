// Package resource stores monotonically versioned, lock-aware resources on
// top of the index layer. Content lives in a [BlobStore]; the store holds one
// record per version plus a latest pointer written with the first version.
package resource

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/keycodec"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/types"
)

// Service is the resource version service. It is safe for concurrent use.
type Service struct {
	store    store.Store
	writer   *index.Writer
	blobs    BlobStore
	policies index.ResourcePolicies
	logger   types.Logger
	opts     *Options
}

// New creates a Service.
func New(s store.Store, w *index.Writer, blobs BlobStore, logger types.Logger, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, errors.New("store cannot be nil")
	}

	if w == nil {
		return nil, errors.New("index writer cannot be nil")
	}

	if blobs == nil {
		return nil, errors.New("blob store cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid resource service options: %w", err)
	}

	return &Service{
		store:  s,
		writer: w,
		blobs:  blobs,
		logger: logger.WithField("component", "resource_service"),
		opts:   options,
	}, nil
}

// GetCurrentVersion returns the highest stored version of a resource, or a
// Version with Index 0 when none exists.
//
// It reads every version record of the resource, so its cost grows with the
// number of versions.
func (s *Service) GetCurrentVersion(ctx context.Context, projectID, resourcePath string) (*Version, error) {
	if err := validateKey(projectID, resourcePath); err != nil {
		return nil, err
	}

	current := &Version{ProjectID: projectID, Path: resourcePath}

	err := s.scanVersions(ctx, projectID, resourcePath, func(v *Version) {
		if v.Index >= current.Index {
			current = v
		}
	})
	if err != nil {
		return nil, err
	}

	return current, nil
}

// ListVersions returns every version of a resource in ascending order.
func (s *Service) ListVersions(ctx context.Context, projectID, resourcePath string) ([]*Version, error) {
	if err := validateKey(projectID, resourcePath); err != nil {
		return nil, err
	}

	var versions []*Version

	err := s.scanVersions(ctx, projectID, resourcePath, func(v *Version) {
		versions = append(versions, v)
	})
	if err != nil {
		return nil, err
	}

	return versions, nil
}

// StoreNewVersion stores req.Content as the next version of a resource.
//
// It fails with *[apperr.LockConflictError] when another user holds the lock
// on the current version. Content is written to the blob store before the
// index records; if indexing fails the blob is removed again on a
// best-effort basis and the indexing error is returned. Unless the service
// was created [WithLastWriterWins], a concurrent writer that stored the same
// version index first causes [store.ErrConflict].
func (s *Service) StoreNewVersion(ctx context.Context, req StoreRequest) (*Version, error) {
	if err := validateKey(req.ProjectID, req.Path); err != nil {
		return nil, err
	}

	current, err := s.GetCurrentVersion(ctx, req.ProjectID, req.Path)
	if err != nil {
		return nil, err
	}

	if current.Locked() && current.LockHolder != req.Author {
		LockConflicts.WithLabelValues("store").Inc()

		return nil, &apperr.LockConflictError{
			ProjectID:  req.ProjectID,
			Path:       req.Path,
			LockHolder: current.LockHolder,
			Requester:  req.Author,
		}
	}

	next := &Version{
		ProjectID:  req.ProjectID,
		Path:       req.Path,
		Index:      current.Index + 1,
		LockHolder: req.LockHolder,
		Author:     req.Author,
		Size:       len(req.Content),
		CreatedAt:  s.opts.clock().UTC(),
	}

	ref, err := s.blobs.Store(ctx, s.blobPath(next), req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store content of %s version %d: %w", req.Path, next.Index, err)
	}

	next.BlobRef = ref

	var writeOpts []index.WriteOption
	if !s.opts.lastWriterWins {
		writeOpts = append(writeOpts, index.WithMustNotExist())
	}

	policies := s.policies.Store(req.ProjectID, req.Path, next.Index)

	if err := s.writer.WriteAll(ctx, versionEntity{v: next}, policies, writeOpts...); err != nil {
		if errors.Is(err, store.ErrConflict) {
			VersionConflicts.Inc()
		}

		// The write may have failed because ctx is done; the cleanup still runs.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
		delErr := s.blobs.Delete(cleanupCtx, ref)
		cancel()

		if delErr != nil {
			s.logger.WithFields(map[string]any{
				"project_id": req.ProjectID,
				"path":       req.Path,
				"blob_ref":   ref,
			}).Errorf("Failed to remove orphaned blob: %v", delErr)
		}

		return nil, fmt.Errorf("failed to index %s version %d: %w", req.Path, next.Index, err)
	}

	// Batch puts store the base version (zero) plus one.
	next.Token = 1

	s.logger.WithFields(map[string]any{
		"project_id": req.ProjectID,
		"path":       req.Path,
		"version":    next.Index,
	}).Debug("Resource version stored")

	return next, nil
}

// ListResources returns every resource in a project.
func (s *Service) ListResources(ctx context.Context, projectID string) ([]*Resource, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, apperr.Invalid("projectId", "cannot be empty")
	}

	var resources []*Resource

	q := s.policies.ListQuery(projectID).Query(s.opts.pageSize, "")

	err := store.QueryAll(ctx, s.store, q, func(rec *store.Record) error {
		v, err := decodeVersion(rec.Body, rec.Version)
		if err != nil {
			return err
		}

		resources = append(resources, &Resource{
			ProjectID: v.ProjectID,
			Path:      v.Path,
			CreatedBy: v.Author,
			CreatedAt: v.CreatedAt,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources of project %s: %w", projectID, err)
	}

	return resources, nil
}

// SetLock locks (or unlocks) the current version of a resource for user. It
// fails with *[apperr.LockConflictError] when someone else holds the lock,
// and with [store.ErrConflict] when the version record changed concurrently.
func (s *Service) SetLock(ctx context.Context, projectID, resourcePath, user string, locked bool) (*Version, error) {
	if strings.TrimSpace(user) == "" {
		return nil, apperr.Invalid("user", "cannot be empty")
	}

	current, err := s.GetCurrentVersion(ctx, projectID, resourcePath)
	if err != nil {
		return nil, err
	}

	if current.Index == 0 {
		return nil, fmt.Errorf("resource %s in project %s: %w", resourcePath, projectID, apperr.ErrNotFound)
	}

	if current.Locked() && current.LockHolder != user {
		LockConflicts.WithLabelValues("lock").Inc()

		return nil, &apperr.LockConflictError{
			ProjectID:  projectID,
			Path:       resourcePath,
			LockHolder: current.LockHolder,
			Requester:  user,
		}
	}

	updated := *current
	updated.LockHolder = ""
	if locked {
		updated.LockHolder = user
	}

	policy := s.policies.Version(projectID, resourcePath, current.Index)

	body, err := versionEntity{v: &updated}.EncodeRecord(policy)
	if err != nil {
		return nil, err
	}

	rec := &store.Record{PartitionKey: policy.PartitionKey, SortKey: policy.SortKey, Body: body}

	token, err := s.store.Put(ctx, rec, &current.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to update lock of %s version %d: %w", resourcePath, current.Index, err)
	}

	updated.Token = token

	return &updated, nil
}

// RetrieveContent returns the content of a version. Index 0 selects the
// current version.
func (s *Service) RetrieveContent(ctx context.Context, projectID, resourcePath string, versionIndex int) ([]byte, *Version, error) {
	if err := validateKey(projectID, resourcePath); err != nil {
		return nil, nil, err
	}

	if versionIndex < 0 {
		return nil, nil, apperr.Invalid("version", "cannot be negative")
	}

	var v *Version

	if versionIndex == 0 {
		current, err := s.GetCurrentVersion(ctx, projectID, resourcePath)
		if err != nil {
			return nil, nil, err
		}

		if current.Index == 0 {
			return nil, nil, fmt.Errorf("resource %s in project %s: %w", resourcePath, projectID, apperr.ErrNotFound)
		}

		v = current
	} else {
		policy := s.policies.Version(projectID, resourcePath, versionIndex)

		rec, err := s.store.Get(ctx, policy.PartitionKey, policy.SortKey)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, fmt.Errorf("resource %s version %d in project %s: %w", resourcePath, versionIndex, projectID, apperr.ErrNotFound)
			}

			return nil, nil, fmt.Errorf("failed to read %s version %d: %w", resourcePath, versionIndex, err)
		}

		if v, err = decodeVersion(rec.Body, rec.Version); err != nil {
			return nil, nil, err
		}
	}

	data, err := s.blobs.Retrieve(ctx, v.BlobRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve content of %s version %d: %w", resourcePath, v.Index, err)
	}

	return data, v, nil
}

func (s *Service) scanVersions(ctx context.Context, projectID, resourcePath string, fn func(*Version)) error {
	q := s.policies.CurrentVersionQuery(projectID, resourcePath).Query(s.opts.pageSize, "")

	err := store.QueryAll(ctx, s.store, q, func(rec *store.Record) error {
		v, err := decodeVersion(rec.Body, rec.Version)
		if err != nil {
			return err
		}

		fn(v)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read versions of %s in project %s: %w", resourcePath, projectID, err)
	}

	return nil
}

// blobPath is <projectId>/<safe path>/v<index>-<upload id>. The upload id
// makes the paths of racing writers of the same index distinct.
func (s *Service) blobPath(v *Version) string {
	return path.Join(v.ProjectID, keycodec.SafeKeyFragment(v.Path), "v"+strconv.Itoa(v.Index)+"-"+s.opts.newUploadID())
}

func validateKey(projectID, resourcePath string) error {
	if strings.TrimSpace(projectID) == "" {
		return apperr.Invalid("projectId", "cannot be empty")
	}

	if strings.TrimSpace(resourcePath) == "" {
		return apperr.Invalid("path", "cannot be empty")
	}

	return nil
}
