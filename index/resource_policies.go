package index

import (
	"github.com/slackmgr/projectindex/keycodec"
	"github.com/slackmgr/projectindex/store"
)

const (
	resourceSortPrefix = "resource#"
	versionSortPrefix  = "version#"
)

// ResourcePolicies derives the index policies of resource versions and
// resource assignments.
type ResourcePolicies struct{}

// CurrentVersionQuery reads every version record of a resource in ascending
// version order. The current version is the last one returned.
func (ResourcePolicies) CurrentVersionQuery(projectID, path string) Policy {
	return Policy{
		Name:         NameResourceVersionQuery,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      versionPrefix(path),
		Operator:     store.GreaterThan,
	}
}

// Latest is the non-versioned pointer record written with the first version
// of a resource.
func (ResourcePolicies) Latest(projectID, path string) Policy {
	return Policy{
		Name:         NameResourceLatest,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      resourceSortPrefix + keycodec.SafeKeyFragment(path),
		Operator:     store.LessThan,
	}
}

// Version is the record of one version of a resource.
func (ResourcePolicies) Version(projectID, path string, versionIndex int) Policy {
	return Policy{
		Name:         NameResourceVersion,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      versionPrefix(path) + keycodec.VersionPart(versionIndex),
	}
}

// Store returns the policies written when storing versionIndex: the latest
// pointer and the version record for the first version, only the version
// record afterwards.
func (r ResourcePolicies) Store(projectID, path string, versionIndex int) []Policy {
	if versionIndex == 1 {
		return []Policy{r.Latest(projectID, path), r.Version(projectID, path, versionIndex)}
	}

	return []Policy{r.Version(projectID, path, versionIndex)}
}

// ListQuery reads the latest pointer of every resource in a project.
func (ResourcePolicies) ListQuery(projectID string) Policy {
	return Policy{
		Name:         NameResourceLatest,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      resourceSortPrefix,
		Operator:     store.GreaterThan,
	}
}

// UserAssignment is the record linking assignee to one resource.
func (ResourcePolicies) UserAssignment(projectID, path, assignee string) Policy {
	return Policy{
		Name:         NameResourceAssignment,
		PartitionKey: ResourceAssignmentPrefix + keycodec.SafeKeyFragment(assignee),
		SortKey:      projectID + "#" + keycodec.SafeKeyFragment(path),
	}
}

// UserAssignmentsQuery reads every resource assigned to assignee.
func (ResourcePolicies) UserAssignmentsQuery(assignee string) Policy {
	return Policy{
		Name:         NameResourceAssignment,
		PartitionKey: ResourceAssignmentPrefix + keycodec.SafeKeyFragment(assignee),
		Operator:     store.GreaterThan,
	}
}

func versionPrefix(path string) string {
	return versionSortPrefix + keycodec.SubstitutedAlphanumeric(keycodec.SafeKeyFragment(path)) + "#"
}
