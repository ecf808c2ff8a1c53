package index_test

import (
	"strings"
	"testing"
	"time"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/keycodec"
	"github.com/slackmgr/projectindex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== Project Policy Tests ====================

func TestProjectPolicies_ByID(t *testing.T) {
	t.Parallel()

	p := index.ProjectPolicies{}.ByID("p1")

	assert.Equal(t, "projects_p1", p.PartitionKey)
	assert.Equal(t, "project", p.SortKey)
	assert.Equal(t, store.Equal, p.Operator)
}

func TestProjectPolicies_ByState(t *testing.T) {
	t.Parallel()

	changedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	policies := index.ProjectPolicies{}.ByState("Initialising", changedAt, "p1")
	require.Len(t, policies, 2)

	asc, desc := policies[0], policies[1]

	assert.Equal(t, "projects_byState_Initialising_asc", asc.PartitionKey)
	assert.Equal(t, "state_asc_"+keycodec.OrderPart(changedAt, true)+"_p1", asc.SortKey)
	assert.Equal(t, store.Equal, asc.Operator)

	assert.Equal(t, "projects_byState_Initialising_desc", desc.PartitionKey)
	assert.Equal(t, "state_desc_"+keycodec.OrderPart(changedAt, false)+"_ay", desc.SortKey)
	assert.Equal(t, store.Equal, desc.Operator)
}

func TestProjectPolicies_ByStateQueryCoversByState(t *testing.T) {
	t.Parallel()

	pp := index.ProjectPolicies{}
	written := pp.ByState("InProgress", time.Now(), "p1")

	for i, order := range []index.Order{index.Ascending, index.Descending} {
		q := pp.ByStateQuery("InProgress", order)

		assert.Equal(t, written[i].PartitionKey, q.PartitionKey)
		assert.Equal(t, store.GreaterThan, q.Operator)
		assert.True(t, q.Query(0, "").Matches(written[i].SortKey), "query %s must match written key %s", q, written[i])
	}
}

func TestProjectPolicies_All(t *testing.T) {
	t.Parallel()

	all := index.ProjectPolicies{}.All("p1", "Completed", time.Now())
	require.Len(t, all, 3)
	assert.Equal(t, index.NameProjectByID, all[0].Name)
	assert.Equal(t, index.NameProjectByStateAsc, all[1].Name)
	assert.Equal(t, index.NameProjectByStateDesc, all[2].Name)
}

func TestProjectPolicies_UserAssignments(t *testing.T) {
	t.Parallel()

	pp := index.ProjectPolicies{}

	exact := pp.UserAssignments("p1", "alice", "docs/readme.txt")
	require.Len(t, exact, 2)
	assert.Equal(t, "projects_p1", exact[0].PartitionKey)
	assert.Equal(t, "assignee#alice#docs%2Freadme.txt", exact[0].SortKey)
	assert.Equal(t, store.Equal, exact[0].Operator)
	assert.Equal(t, "assignedProjects_alice", exact[1].PartitionKey)
	assert.Equal(t, "p1#docs%2Freadme.txt", exact[1].SortKey)
	assert.Equal(t, store.Equal, exact[1].Operator)

	prefix := pp.UserAssignments("p1", "alice", "")
	assert.Equal(t, store.GreaterThan, prefix[0].Operator)
	assert.Equal(t, store.GreaterThan, prefix[1].Operator)
	assert.True(t, prefix[0].Query(0, "").Matches(exact[0].SortKey))
	assert.True(t, prefix[1].Query(0, "").Matches(exact[1].SortKey))

	assert.True(t, pp.AssigneesQuery("p1").Query(0, "").Matches(exact[0].SortKey))
	assert.True(t, pp.UserProjectsQuery("alice").Query(0, "").Matches(exact[1].SortKey))
	assert.Equal(t, exact[1].PartitionKey, pp.UserProjectsQuery("alice").PartitionKey)
}

func TestProjectPolicies_UserAssignments_EncodesUser(t *testing.T) {
	t.Parallel()

	pp := index.ProjectPolicies{}

	got := pp.UserAssignments("p1", "team/a#b c@example.com", "")
	assert.Equal(t, "assignee#team%2Fa%23b+c%40example.com#", got[0].SortKey)
	assert.Equal(t, "assignedProjects_team%2Fa%23b+c%40example.com", got[1].PartitionKey)
	assert.Equal(t, got[1].PartitionKey, pp.UserProjectsQuery("team/a#b c@example.com").PartitionKey)

	// A '#' in one user name cannot produce another user's prefix.
	other := pp.UserAssignments("p1", "team/a", "")
	assert.False(t, other[0].Query(0, "").Matches(got[0].SortKey))
}

// ==================== Resource Policy Tests ====================

func TestResourcePolicies_Store(t *testing.T) {
	t.Parallel()

	rp := index.ResourcePolicies{}

	first := rp.Store("p1", "docs/readme.txt", 1)
	require.Len(t, first, 2)
	assert.Equal(t, "resource#docs%2Freadme.txt", first[0].SortKey)
	assert.Equal(t, store.LessThan, first[0].Operator)
	assert.Equal(t, store.Equal, first[1].Operator)
	assert.True(t, strings.HasSuffix(first[1].SortKey, "#0000000001"))

	third := rp.Store("p1", "docs/readme.txt", 3)
	require.Len(t, third, 1)
	assert.Equal(t, index.NameResourceVersion, third[0].Name)

	assert.True(t, strings.HasSuffix(third[0].SortKey, "#"+keycodec.VersionPart(3)))
}

func TestResourcePolicies_CurrentVersionQueryIsolatesPaths(t *testing.T) {
	t.Parallel()

	rp := index.ResourcePolicies{}
	q := rp.CurrentVersionQuery("p1", "a").Query(0, "")

	assert.True(t, q.Matches(rp.Version("p1", "a", 1).SortKey))
	assert.True(t, q.Matches(rp.Version("p1", "a", 12).SortKey))
	assert.False(t, q.Matches(rp.Version("p1", "a_b", 1).SortKey))
	assert.False(t, q.Matches(rp.Version("p1", "ab", 1).SortKey))
	assert.False(t, q.Matches(rp.Version("p1", "A", 1).SortKey))
}

func TestResourcePolicies_ListQuery(t *testing.T) {
	t.Parallel()

	rp := index.ResourcePolicies{}
	q := rp.ListQuery("p1").Query(10, "")

	assert.True(t, q.Matches(rp.Latest("p1", "docs/readme.txt").SortKey))
	assert.False(t, q.Matches(rp.Version("p1", "docs/readme.txt", 1).SortKey))
	assert.Equal(t, 10, q.Limit)
}

func TestResourcePolicies_UserAssignment(t *testing.T) {
	t.Parallel()

	rp := index.ResourcePolicies{}
	p := rp.UserAssignment("p1", "docs/a b.txt", "bob@example.com")

	assert.Equal(t, "assignments_bob%40example.com", p.PartitionKey)
	assert.Equal(t, "p1#docs%2Fa+b.txt", p.SortKey)
	assert.True(t, rp.UserAssignmentsQuery("bob@example.com").Query(0, "").Matches(p.SortKey))
}

func TestParseOrder(t *testing.T) {
	t.Parallel()

	for _, o := range []index.Order{index.Ascending, index.Descending} {
		got, err := index.ParseOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	for _, s := range []string{"", "DESC", "sideways"} {
		_, err := index.ParseOrder(s)
		require.Error(t, err, s)
		assert.True(t, apperr.IsValidation(err), s)
	}

	assert.Equal(t, "desc", index.Descending.String())
}
