package index

import (
	"time"

	"github.com/slackmgr/projectindex/keycodec"
	"github.com/slackmgr/projectindex/store"
)

const (
	projectSortKey      = "project"
	assigneeSortPrefix  = "assignee#"
	stateSortPrefixBase = "state_"
)

// ProjectPolicies derives the index policies of projects and their user
// assignments.
type ProjectPolicies struct{}

// ByID is the primary lookup of a project.
func (ProjectPolicies) ByID(projectID string) Policy {
	return Policy{
		Name:         NameProjectByID,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      projectSortKey,
	}
}

// ByState returns the ascending and descending by-state policies a project
// occupies while it is in state, having entered it at changedAt. Projects
// sharing changedAt order by id, and the descending key carries the inverted
// id so that order is reversed there too.
func (p ProjectPolicies) ByState(state string, changedAt time.Time, projectID string) []Policy {
	return []Policy{
		{
			Name:         NameProjectByStateAsc,
			PartitionKey: statePartition(state, Ascending),
			SortKey:      stateSortPrefix(Ascending) + keycodec.OrderPart(changedAt, true) + "_" + projectID,
		},
		{
			Name:         NameProjectByStateDesc,
			PartitionKey: statePartition(state, Descending),
			SortKey:      stateSortPrefix(Descending) + keycodec.OrderPart(changedAt, false) + "_" + keycodec.InvertedAlphanumeric(projectID),
		},
	}
}

// ByStateQuery reads every project in state in the given order.
func (ProjectPolicies) ByStateQuery(state string, order Order) Policy {
	name := NameProjectByStateAsc
	if order == Descending {
		name = NameProjectByStateDesc
	}

	return Policy{
		Name:         name,
		PartitionKey: statePartition(state, order),
		SortKey:      stateSortPrefix(order),
		Operator:     store.GreaterThan,
	}
}

// All returns every policy a project occupies.
func (p ProjectPolicies) All(projectID, state string, changedAt time.Time) []Policy {
	return append([]Policy{p.ByID(projectID)}, p.ByState(state, changedAt, projectID)...)
}

// UserAssignments returns the by-project and by-user policies of an
// assignment. With an empty resource name both are prefix queries covering
// every resource the user is assigned to within the project.
func (ProjectPolicies) UserAssignments(projectID, assignee, resourceFullName string) []Policy {
	byProject := Policy{
		Name:         NameAssignmentByProject,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      assigneeSortPrefix + keycodec.SafeKeyFragment(assignee) + "#",
	}

	byUser := Policy{
		Name:         NameAssignmentByUser,
		PartitionKey: AssignedProjectsPartitionPrefix + keycodec.SafeKeyFragment(assignee),
		SortKey:      projectID + "#",
	}

	if resourceFullName == "" {
		byProject.Operator = store.GreaterThan
		byUser.Operator = store.GreaterThan
	} else {
		safe := keycodec.SafeKeyFragment(resourceFullName)
		byProject.SortKey += safe
		byUser.SortKey += safe
	}

	return []Policy{byProject, byUser}
}

// AssigneesQuery reads every assignment record of a project.
func (ProjectPolicies) AssigneesQuery(projectID string) Policy {
	return Policy{
		Name:         NameAssignmentByProject,
		PartitionKey: ProjectPartitionPrefix + projectID,
		SortKey:      assigneeSortPrefix,
		Operator:     store.GreaterThan,
	}
}

// UserProjectsQuery reads every project assignment of a user.
func (ProjectPolicies) UserProjectsQuery(assignee string) Policy {
	return Policy{
		Name:         NameAssignmentByUser,
		PartitionKey: AssignedProjectsPartitionPrefix + keycodec.SafeKeyFragment(assignee),
		Operator:     store.GreaterThan,
	}
}

func statePartition(state string, order Order) string {
	return ProjectStatePartitionPrefix + state + "_" + order.String()
}

func stateSortPrefix(order Order) string {
	return stateSortPrefixBase + order.String() + "_"
}
