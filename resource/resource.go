package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slackmgr/projectindex/index"
)

// BlobStore holds resource content. Refs returned by Store are opaque.
type BlobStore interface {
	Store(ctx context.Context, path string, data []byte) (string, error)
	Retrieve(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Version is one stored version of a resource.
type Version struct {
	ProjectID  string
	Path       string
	Index      int
	LockHolder string
	Author     string
	BlobRef    string
	Size       int
	CreatedAt  time.Time

	// Token is the store version token of the version record, used to guard
	// lock changes.
	Token int64
}

// Locked reports whether someone holds the lock on this version.
func (v *Version) Locked() bool {
	return v.LockHolder != ""
}

// Resource is the latest-pointer view of a resource, as returned by
// [Service.ListResources].
type Resource struct {
	ProjectID string
	Path      string
	CreatedBy string
	CreatedAt time.Time
}

// StoreRequest describes a new version.
type StoreRequest struct {
	ProjectID string
	Path      string
	Author    string
	Content   []byte

	// LockHolder is recorded on the new version. Empty leaves it unlocked.
	LockHolder string
}

// Assignment links a user to one resource.
type Assignment struct {
	ProjectID  string
	Path       string
	Assignee   string
	AssignedAt time.Time
}

type versionRecord struct {
	Index      string    `json:"index"`
	ProjectID  string    `json:"projectId"`
	Path       string    `json:"path"`
	Version    int       `json:"version"`
	LockHolder string    `json:"lockHolder,omitempty"`
	Author     string    `json:"author,omitempty"`
	BlobRef    string    `json:"blobRef"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}

// versionEntity encodes a version under the latest pointer and version
// policies. Lock state lives on version records only: the latest pointer is
// written once, so SetLock never touches it.
type versionEntity struct {
	v *Version
}

func (versionEntity) Kind() string { return "resource" }

func (e versionEntity) EncodeRecord(p index.Policy) (json.RawMessage, error) {
	lockHolder := e.v.LockHolder
	if p.Name == index.NameResourceLatest {
		lockHolder = ""
	}

	return json.Marshal(versionRecord{
		Index:      p.Name,
		ProjectID:  e.v.ProjectID,
		Path:       e.v.Path,
		Version:    e.v.Index,
		LockHolder: lockHolder,
		Author:     e.v.Author,
		BlobRef:    e.v.BlobRef,
		Size:       e.v.Size,
		CreatedAt:  e.v.CreatedAt.UTC(),
	})
}

func decodeVersion(body json.RawMessage, token int64) (*Version, error) {
	var rec versionRecord

	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode resource version record: %w", err)
	}

	return &Version{
		ProjectID:  rec.ProjectID,
		Path:       rec.Path,
		Index:      rec.Version,
		LockHolder: rec.LockHolder,
		Author:     rec.Author,
		BlobRef:    rec.BlobRef,
		Size:       rec.Size,
		CreatedAt:  rec.CreatedAt,
		Token:      token,
	}, nil
}

type assignmentRecord struct {
	Index      string    `json:"index"`
	ProjectID  string    `json:"projectId"`
	Path       string    `json:"path"`
	Assignee   string    `json:"assignee"`
	AssignedAt time.Time `json:"assignedAt"`
}

type assignmentEntity struct {
	a *Assignment
}

func (assignmentEntity) Kind() string { return "resource_assignment" }

func (e assignmentEntity) EncodeRecord(p index.Policy) (json.RawMessage, error) {
	return json.Marshal(assignmentRecord{
		Index:      p.Name,
		ProjectID:  e.a.ProjectID,
		Path:       e.a.Path,
		Assignee:   e.a.Assignee,
		AssignedAt: e.a.AssignedAt.UTC(),
	})
}

func decodeAssignment(body json.RawMessage) (*Assignment, error) {
	var rec assignmentRecord

	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode resource assignment record: %w", err)
	}

	return &Assignment{
		ProjectID:  rec.ProjectID,
		Path:       rec.Path,
		Assignee:   rec.Assignee,
		AssignedAt: rec.AssignedAt,
	}, nil
}
