package metadata

import (
	"encoding/json"
	"fmt"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
)

// jsonRecord is Record's on-the-wire shape for the pending-state store,
// which persists Metadata sets as part of a Manifest. Zero-value
// fields that don't apply to a Kind are simply omitted.
type jsonRecord struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	UID    uint32 `json:"uid,omitempty"`
	GID    uint32 `json:"gid,omitempty"`
	Mode   uint32 `json:"mode,omitempty"`
	Flags  uint32 `json:"flags,omitempty"`
	Sum    string `json:"sum,omitempty"`
	Target string `json:"target,omitempty"`
}

func kindFromString(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "hardlink":
		return KindHardlink, nil
	case "directory":
		return KindDirectory, nil
	case "symlink":
		return KindSymlink, nil
	case "absent":
		return KindAbsent, nil
	default:
		return 0, fmt.Errorf("metadata: unknown record kind %q", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	jr := jsonRecord{
		Kind: r.kind.String(), Path: r.path,
		UID: r.uid, GID: r.gid, Mode: r.mode, Flags: r.flags,
		Target: r.target,
	}
	if r.kind == KindFile {
		jr.Sum = r.sum.String()
	}
	return json.Marshal(jr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(b []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(b, &jr); err != nil {
		return err
	}
	k, err := kindFromString(jr.Kind)
	if err != nil {
		return err
	}
	out := Record{
		kind: k, path: jr.Path,
		uid: jr.UID, gid: jr.GID, mode: jr.Mode, flags: jr.Flags,
		target: jr.Target,
	}
	if k == KindFile && jr.Sum != "" {
		sum, err := hash.FromHex(jr.Sum)
		if err != nil {
			return fmt.Errorf("metadata: record %s: %w", jr.Path, err)
		}
		out.sum = sum
	}
	*r = out
	return nil
}

// MarshalJSON renders s as a path-sorted array of Records.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	recs := make([]Record, 0, s.Len())
	s.Each(func(r Record) { recs = append(recs, r) })
	return json.Marshal(recs)
}

// UnmarshalJSON rebuilds a Set from the array MarshalJSON produces.
func (s *Set) UnmarshalJSON(b []byte) error {
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	ns := NewSet()
	for _, r := range recs {
		ns.Add(r)
	}
	*s = *ns
	return nil
}

// jsonIndex is Index's on-the-wire shape: the old/new maps alone are
// enough to rebuild all, since AddOld/AddNew populate it as a side
// effect.
type jsonIndex struct {
	Old map[string]string `json:"old"`
	New map[string]string `json:"new"`
}

// MarshalJSON implements json.Marshaler.
func (ix *Index) MarshalJSON() ([]byte, error) {
	ji := jsonIndex{Old: make(map[string]string, len(ix.old)), New: make(map[string]string, len(ix.new))}
	for p, h := range ix.old {
		ji.Old[p] = h.String()
	}
	for p, h := range ix.new {
		ji.New[p] = h.String()
	}
	return json.Marshal(ji)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ix *Index) UnmarshalJSON(b []byte) error {
	var ji jsonIndex
	if err := json.Unmarshal(b, &ji); err != nil {
		return err
	}
	n := NewIndex()
	for p, hs := range ji.Old {
		h, err := hash.FromHex(hs)
		if err != nil {
			return fmt.Errorf("metadata: index old[%s]: %w", p, err)
		}
		n.AddOld(p, h)
	}
	for p, hs := range ji.New {
		h, err := hash.FromHex(hs)
		if err != nil {
			return fmt.Errorf("metadata: index new[%s]: %w", p, err)
		}
		n.AddNew(p, h)
	}
	*ix = *n
	return nil
}
