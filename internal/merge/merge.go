// Package merge implements the three-way text merge:
// given old/cur/new byte sequences, produce either a clean merge or one
// carrying diff3-style conflict markers. Grounded on freebsd-update's
// src/core/merge.rs (policy: deny list, absent-in-old/absent-in-new
// shortcuts) with the underlying line diff done by
// github.com/sergi/go-diff/diffmatchpatch — go-git's go.mod carries it
// (utils/diff, utils/difftree) for its own internal diffing, but never
// runs it through an actual three-way merge; here it does.
package merge

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultDenyPaths lists the files the merge stage never touches,
// matching merge.rs's DONT_MERGE_STRS: generated password/service
// databases that get regenerated wholesale, not hand-edited.
var DefaultDenyPaths = []string{
	"/etc/passwd",
	"/etc/spwd.db",
	"/etc/pwd.db",
	"/etc/login.conf.db",
	"/var/db/services.db",
}

// DefaultDenyList returns DefaultDenyPaths as a lookup set.
func DefaultDenyList() *hashset.Set[string] {
	hs := hashset.New[string]()
	for _, p := range DefaultDenyPaths {
		hs.Add(p)
	}
	return hs
}

// ShouldMerge reports whether path should go through a three-way merge
// at all, per policy: deny-listed paths never merge;
// absent-in-new means keep the local copy; absent-in-old means take
// new wholesale. Both of the latter are "no merge needed", not errors.
func ShouldMerge(path string, deny *hashset.Set[string], presentInOld, presentInNew bool) bool {
	if deny != nil && deny.Contains(path) {
		return false
	}
	if !presentInNew || !presentInOld {
		return false
	}
	return true
}

// ThreeWay merges old/cur/new byte sequences line-by-line, returning the
// merged content and whether any conflict markers were inserted. It
// treats input as text; binary content should be filtered out by the
// caller (MergeChanges is a config-file-oriented policy).
func ThreeWay(old, cur, new []byte) (merged []byte, conflict bool) {
	oldText := string(old)
	curText := string(cur)
	newText := string(new)

	dmp := diffmatchpatch.New()
	curHunks := lineHunks(dmp, oldText, curText)
	newHunks := lineHunks(dmp, oldText, newText)

	out, conflicted := merge3(splitLinesKeep(oldText), curHunks, newHunks)
	return []byte(out), conflicted
}

// hunk is a contiguous range of old-file lines ([start, end) in line
// units) replaced by text, the way a diffmatchpatch Delete (optionally
// paired with an adjacent Insert) or a standalone Insert describes a
// change relative to the old file. A pure insertion has start == end.
type hunk struct {
	start, end int
	text       string
}

// lineHunks runs diffmatchpatch's line-mode diff (DiffLinesToChars turns
// each unique line into a single rune so DiffMain operates on whole
// lines instead of characters) between old and other, then collapses
// the resulting op sequence into hunks anchored to old-file line
// positions.
func lineHunks(dmp *diffmatchpatch.DiffMatchPatch, old, other string) []hunk {
	a, b, lines := dmp.DiffLinesToChars(old, other)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var hunks []hunk
	pos := 0
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += lineCount(d.Text)
		case diffmatchpatch.DiffDelete:
			start := pos
			pos += lineCount(d.Text)
			text := ""
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				text = diffs[i+1].Text
				i++
			}
			hunks = append(hunks, hunk{start: start, end: pos, text: text})
		case diffmatchpatch.DiffInsert:
			hunks = append(hunks, hunk{start: pos, end: pos, text: d.Text})
		}
	}
	return hunks
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// splitLinesKeep splits s into lines, each retaining its trailing "\n"
// (the last line keeps none if s doesn't end in one), so joining the
// slice always reconstructs s exactly.
func splitLinesKeep(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
		if s == "" {
			break
		}
	}
	return out
}

func joinLines(lines []string) string {
	return strings.Join(lines, "")
}

// merge3 is the classic three-way merge sweep: walk the old-line axis,
// applying whichever side's hunk touches a given range when only one
// side changed it, and emitting diff3 conflict markers when both sides
// changed the same range differently.
func merge3(oldLines []string, curHunks, newHunks []hunk) (string, bool) {
	var out strings.Builder
	conflict := false
	pos, ci, ni := 0, 0, 0

	for pos < len(oldLines) || ci < len(curHunks) || ni < len(newHunks) {
		var hc, hn *hunk
		if ci < len(curHunks) {
			hc = &curHunks[ci]
		}
		if ni < len(newHunks) {
			hn = &newHunks[ni]
		}

		if hc == nil && hn == nil {
			out.WriteString(joinLines(oldLines[pos:]))
			break
		}

		nextStart := len(oldLines)
		if hc != nil && hc.start < nextStart {
			nextStart = hc.start
		}
		if hn != nil && hn.start < nextStart {
			nextStart = hn.start
		}
		if nextStart > pos {
			out.WriteString(joinLines(oldLines[pos:nextStart]))
			pos = nextStart
		}

		curActive := hc != nil && hc.start == pos
		newActive := hn != nil && hn.start == pos

		switch {
		case curActive && !newActive:
			out.WriteString(hc.text)
			pos = hc.end
			ci++
		case newActive && !curActive:
			out.WriteString(hn.text)
			pos = hn.end
			ni++
		case curActive && newActive:
			if hc.text == hn.text && hc.end == hn.end {
				out.WriteString(hc.text)
				pos = hc.end
				ci++
				ni++
				continue
			}
			end := hc.end
			if hn.end > end {
				end = hn.end
			}
			base := joinLines(oldLines[pos:end])
			out.WriteString("<<<<<<< current\n")
			out.WriteString(hc.text)
			out.WriteString("||||||| base\n")
			out.WriteString(base)
			out.WriteString("=======\n")
			out.WriteString(hn.text)
			out.WriteString(">>>>>>> new\n")
			conflict = true
			pos = end
			ci++
			ni++
		default:
			// Neither hunk starts here; nextStart computation above
			// guarantees this can't happen, but guard against an
			// infinite loop if it somehow does.
			pos++
		}
	}

	return out.String(), conflict
}

// HasConflictMarkers reports whether b still contains an unresolved
// diff3 conflict block, the check the conflict-resolution driver (spec
// ) runs after the user's editor returns.
func HasConflictMarkers(b []byte) bool {
	s := string(b)
	return strings.Contains(s, "<<<<<<< ") && strings.Contains(s, "\n=======\n") && strings.Contains(s, "\n>>>>>>> ")
}

// Diff renders a line-oriented +/- diff between a and b, the display
// the conflict-resolution driver's 'd'/'D' prompt shows to let the user
// compare a just-resolved file against its cur or new starting point.
// Not a patch format — readable output only, same purpose as
// freebsd-update's merge_diff but rendered with diffmatchpatch's own
// line-mode diff rather than a dedicated diff crate.
func Diff(path string, a, b []byte) []byte {
	dmp := diffmatchpatch.New()
	ac, bc, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffMain(ac, bc, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out strings.Builder
	fmt.Fprintf(&out, "diff %s\n", path)
	for _, d := range diffs {
		for _, line := range splitLinesKeep(d.Text) {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out.WriteString("+ " + line)
			case diffmatchpatch.DiffDelete:
				out.WriteString("- " + line)
			default:
				out.WriteString("  " + line)
			}
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return []byte(out.String())
}
