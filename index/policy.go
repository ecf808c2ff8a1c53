// Package index computes where each logical entity lives in the underlying
// store and keeps every physical copy of it in step.
//
// An entity occupies several index policies (partition key, sort key and
// operator). [ProjectPolicies] and [ResourcePolicies] derive them from entity
// fields; [Writer] fans a write or delete out over all of them.
package index

import (
	"fmt"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/store"
)

// Partition key prefixes. These are part of the persisted data format.
const (
	ProjectPartitionPrefix          = "projects_"
	ProjectStatePartitionPrefix     = "projects_byState_"
	ResourceAssignmentPrefix        = "assignments_"
	AssignedProjectsPartitionPrefix = "assignedProjects_"
)

// Policy names, stored on every physical record as its index decoration.
const (
	NameProjectByID          = "projectById"
	NameProjectByStateAsc    = "projectByStateAsc"
	NameProjectByStateDesc   = "projectByStateDesc"
	NameAssignmentByProject  = "assignmentByProject"
	NameAssignmentByUser     = "assignmentByUser"
	NameResourceLatest       = "resourceLatest"
	NameResourceVersion      = "resourceVersion"
	NameResourceAssignment   = "resourceAssignment"
	NameResourceVersionQuery = "resourceVersionQuery"
)

// Policy is one place an entity is stored or looked up.
type Policy struct {
	Name         string
	PartitionKey string
	SortKey      string
	Operator     store.Operator
}

// Query converts the policy into a store query.
func (p Policy) Query(limit int, cursor string) store.Query {
	return store.Query{
		PartitionKey: p.PartitionKey,
		SortKey:      p.SortKey,
		Operator:     p.Operator,
		Limit:        limit,
		Cursor:       cursor,
	}
}

func (p Policy) String() string {
	return p.PartitionKey + "/" + p.SortKey
}

// Order selects ascending or descending listing.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}

	return "asc"
}

// ParseOrder accepts "asc" and "desc". Anything else is a validation error.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return Ascending, apperr.Invalid("order", fmt.Sprintf("must be asc or desc, got %q", s))
	}
}

// List returns p as a one-element slice.
func (p Policy) List() []Policy {
	return []Policy{p}
}
