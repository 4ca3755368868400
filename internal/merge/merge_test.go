package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/merge"
)

func TestThreeWayCleanWhenOnlyOneSideChanged(t *testing.T) {
	old := []byte("one\ntwo\nthree\n")
	cur := []byte("one\nTWO\nthree\n")
	new := []byte("one\ntwo\nthree\nfour\n")

	merged, conflict := merge.ThreeWay(old, cur, new)

	require.False(t, conflict)
	assert.Equal(t, "one\nTWO\nthree\nfour\n", string(merged))
}

func TestThreeWayIdenticalChangeOnBothSidesIsClean(t *testing.T) {
	old := []byte("a\nb\nc\n")
	cur := []byte("a\nX\nc\n")
	new := []byte("a\nX\nc\n")

	merged, conflict := merge.ThreeWay(old, cur, new)

	require.False(t, conflict)
	assert.Equal(t, "a\nX\nc\n", string(merged))
}

func TestThreeWayConflictingChangesProduceMarkers(t *testing.T) {
	old := []byte("a\nb\nc\n")
	cur := []byte("a\nCUR\nc\n")
	new := []byte("a\nNEW\nc\n")

	merged, conflict := merge.ThreeWay(old, cur, new)

	require.True(t, conflict)
	assert.True(t, merge.HasConflictMarkers(merged))
	s := string(merged)
	assert.Contains(t, s, "<<<<<<< current\n")
	assert.Contains(t, s, "CUR\n")
	assert.Contains(t, s, "||||||| base\n")
	assert.Contains(t, s, "b\n")
	assert.Contains(t, s, "=======\n")
	assert.Contains(t, s, "NEW\n")
	assert.Contains(t, s, ">>>>>>> new\n")
}

func TestHasConflictMarkersFalseOnCleanText(t *testing.T) {
	assert.False(t, merge.HasConflictMarkers([]byte("a\nb\nc\n")))
}

func TestShouldMergeDeniesListedPaths(t *testing.T) {
	deny := merge.DefaultDenyList()
	assert.False(t, merge.ShouldMerge("/etc/passwd", deny, true, true))
}

func TestShouldMergeRequiresPresenceInBothOldAndNew(t *testing.T) {
	deny := merge.DefaultDenyList()
	assert.False(t, merge.ShouldMerge("/etc/hosts", deny, false, true))
	assert.False(t, merge.ShouldMerge("/etc/hosts", deny, true, false))
	assert.True(t, merge.ShouldMerge("/etc/hosts", deny, true, true))
}

func TestDiffMarksAddedAndRemovedLines(t *testing.T) {
	a := []byte("keep\nold line\n")
	b := []byte("keep\nnew line\n")

	d := string(merge.Diff("/etc/rc.conf", a, b))
	assert.Contains(t, d, "diff /etc/rc.conf\n")
	assert.Contains(t, d, "- old line\n")
	assert.Contains(t, d, "+ new line\n")
	assert.Contains(t, d, "  keep\n")
}

func TestDiffEmptyWhenFilesIdentical(t *testing.T) {
	a := []byte("same\n")
	d := string(merge.Diff("/etc/rc.conf", a, a))
	assert.NotContains(t, d, "+ ")
	assert.NotContains(t, d, "- ")
}
