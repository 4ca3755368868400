package diff_test

import (
	"regexp"
	"testing"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

func sum(b byte) hash.Hash {
	var h hash.Hash
	h[0] = b
	return h
}

func setOf(records ...metadata.Record) *metadata.Set {
	s := metadata.NewSet()
	for _, r := range records {
		s.Add(r)
	}
	return s
}

func TestRunIdempotentFilterDropsIdenticalFiles(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/motd", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/motd", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/motd", 0, 0, 0644, 0, sum(2)))

	res, _ := diff.Run(old, new, cur, diff.Policy{}, nil)

	assert.Empty(t, res.Updates)
	assert.Empty(t, res.Removals)
	assert.Empty(t, res.Additions)
	_, stillThere := cur.Get("/etc/motd")
	assert.False(t, stillThere)
}

func TestRunUpdateIfUnmodifiedLeavesLocalChangeAlone(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(3)))

	policy := diff.Policy{
		UpdateIfUnmodified: []*regexp.Regexp{regexp.MustCompile(`^/etc/rc\.conf$`)},
	}

	res, outcome := diff.Run(old, new, cur, policy, nil)

	assert.Contains(t, outcome.ModifiedFiles, "/etc/rc.conf")
	assert.Empty(t, res.Updates)
	assert.Empty(t, res.Removals)
	assert.Empty(t, res.Additions)
	_, ok := cur.Get("/etc/rc.conf")
	assert.False(t, ok, "modified path must be cleared from cur too")
}

func TestRunUpdateIfUnmodifiedAllowsCleanUpgrade(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/rc.conf", 0, 0, 0644, 0, sum(1)))

	policy := diff.Policy{
		UpdateIfUnmodified: []*regexp.Regexp{regexp.MustCompile(`^/etc/rc\.conf$`)},
	}

	res, outcome := diff.Run(old, new, cur, policy, nil)

	assert.Empty(t, outcome.ModifiedFiles)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, "/etc/rc.conf", res.Updates[0].Path)
}

func TestRunKeepModifiedMetadataGraftsOwnerModeOntoNew(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/crontab", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/crontab", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/crontab", 0, 0, 0600, 0, sum(1)))

	policy := diff.Policy{KeepModifiedMetadata: true}

	res, _ := diff.Run(old, new, cur, policy, nil)

	require.Len(t, res.Updates, 1)
	assert.EqualValues(t, 0600, res.Updates[0].New.Mode())
	assert.Equal(t, sum(2), res.Updates[0].New.Sum())
}

func TestRunMergeChangesSelectsUnresolvedThreeWayDiff(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(3)))

	policy := diff.Policy{
		MergeChanges: []*regexp.Regexp{regexp.MustCompile(`^/etc/hosts$`)},
	}

	_, outcome := diff.Run(old, new, cur, policy, nil)

	require.Len(t, outcome.MergeCandidates, 1)
	assert.Equal(t, "/etc/hosts", outcome.MergeCandidates[0].Path)
	assert.Equal(t, sum(1), outcome.MergeCandidates[0].Old.Sum())
}

func TestRunMergeChangesRespectsDenyList(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/passwd", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/passwd", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/passwd", 0, 0, 0644, 0, sum(3)))

	deny := hashset.New[string]()
	deny.Add("/etc/passwd")

	policy := diff.Policy{
		MergeChanges: []*regexp.Regexp{regexp.MustCompile(`^/etc/passwd$`)},
		DenyMerge:    deny,
	}

	_, outcome := diff.Run(old, new, cur, policy, nil)

	assert.Empty(t, outcome.MergeCandidates)
}

func TestRunMergeCandidateIsExcludedFromUpdateIfUnmodified(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewFile("/etc/hosts", 0, 0, 0644, 0, sum(3)))

	policy := diff.Policy{
		UpdateIfUnmodified: []*regexp.Regexp{regexp.MustCompile(`^/etc/hosts$`)},
		MergeChanges:       []*regexp.Regexp{regexp.MustCompile(`^/etc/hosts$`)},
	}

	_, outcome := diff.Run(old, new, cur, policy, nil)

	assert.Empty(t, outcome.ModifiedFiles, "merge candidates bypass the update-if-unmodified veto")
	require.Len(t, outcome.MergeCandidates, 1)
}

func TestRunHardlinkFollowsTargetFileDecision(t *testing.T) {
	old := setOf(
		metadata.NewFile("/bin/sh", 0, 0, 0755, 0, sum(1)),
		metadata.NewHardlink("/bin/rsh", "/bin/sh"),
	)
	new := setOf(
		metadata.NewFile("/bin/sh", 0, 0, 0755, 0, sum(2)),
		metadata.NewHardlink("/bin/rsh", "/bin/sh"),
	)
	cur := setOf(
		metadata.NewFile("/bin/sh", 0, 0, 0755, 0, sum(3)),
		metadata.NewHardlink("/bin/rsh", "/bin/sh"),
	)

	policy := diff.Policy{
		UpdateIfUnmodified: []*regexp.Regexp{regexp.MustCompile(`^/bin/`)},
	}

	res, outcome := diff.Run(old, new, cur, policy, nil)

	assert.ElementsMatch(t, []string{"/bin/sh", "/bin/rsh"}, outcome.ModifiedFiles)
	assert.Empty(t, res.Updates)
}

func TestRunAbsentDashPreservedWhenAlsoAbsentInOld(t *testing.T) {
	old := setOf(metadata.NewAbsent("/etc/new-thing"))
	new := setOf(metadata.NewFile("/etc/new-thing", 0, 0, 0644, 0, sum(1)))
	cur := setOf(metadata.NewAbsent("/etc/new-thing"))

	res, outcome := diff.Run(old, new, cur, diff.Policy{}, nil)

	assert.Empty(t, outcome.ModifiedFiles)
	require.Len(t, res.Additions, 1)
	assert.Equal(t, "/etc/new-thing", res.Additions[0].Path())
}

func TestRunAbsentDashTreatedAsLocalDeletionWhenOldHadIt(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/gone", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewFile("/etc/gone", 0, 0, 0644, 0, sum(2)))
	cur := setOf(metadata.NewAbsent("/etc/gone"))

	res, _ := diff.Run(old, new, cur, diff.Policy{}, nil)

	_, stillInNew := new.Get("/etc/gone")
	assert.False(t, stillInNew)
	assert.Empty(t, res.Additions)
}

func TestRunTypeChangeReported(t *testing.T) {
	old := setOf(metadata.NewFile("/etc/resolv.conf", 0, 0, 0644, 0, sum(1)))
	new := setOf(metadata.NewDirectory("/etc/resolv.conf", 0, 0, 0755, 0))
	cur := setOf(metadata.NewFile("/etc/resolv.conf", 0, 0, 0644, 0, sum(1)))

	res, _ := diff.Run(old, new, cur, diff.Policy{}, nil)

	require.Len(t, res.TypeChanges, 1)
	assert.Equal(t, metadata.KindFile, res.TypeChanges[0].Cur.Kind())
	assert.Equal(t, metadata.KindDirectory, res.TypeChanges[0].New.Kind())
}
