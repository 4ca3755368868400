package state

import (
	"encoding/json"
	"fmt"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

type jsonMergeRecord struct {
	Old string `json:"old"`
	New string `json:"new"`
	Cur string `json:"cur"`
	Res string `json:"res"`
}

func (r MergeRecord) toJSON() jsonMergeRecord {
	return jsonMergeRecord{Old: r.Old.String(), New: r.New.String(), Cur: r.Cur.String(), Res: r.Res.String()}
}

func (j jsonMergeRecord) toRecord() (MergeRecord, error) {
	var r MergeRecord
	var err error
	if r.Old, err = hash.FromHex(j.Old); err != nil {
		return r, err
	}
	if r.New, err = hash.FromHex(j.New); err != nil {
		return r, err
	}
	if r.Cur, err = hash.FromHex(j.Cur); err != nil {
		return r, err
	}
	if r.Res, err = hash.FromHex(j.Res); err != nil {
		return r, err
	}
	return r, nil
}

type jsonManifest struct {
	Kind          string                     `json:"kind"`
	Version       string                     `json:"version"`
	Cur           *metadata.Set              `json:"cur"`
	New           *metadata.Set              `json:"new"`
	KernelDone    bool                       `json:"kernel_done,omitempty"`
	WorldDone     bool                       `json:"world_done,omitempty"`
	MergeClean    map[string]jsonMergeRecord `json:"merge_clean,omitempty"`
	MergeConflict map[string]jsonMergeRecord `json:"merge_conflict,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	jm := jsonManifest{
		Kind: m.kind.String(), Version: m.version,
		Cur: m.cur, New: m.new,
		KernelDone: m.kernelDone, WorldDone: m.worldDone,
	}
	if m.mergeClean != nil {
		jm.MergeClean = make(map[string]jsonMergeRecord, len(m.mergeClean))
		for p, r := range m.mergeClean {
			jm.MergeClean[p] = r.toJSON()
		}
	}
	if m.mergeConflict != nil {
		jm.MergeConflict = make(map[string]jsonMergeRecord, len(m.mergeConflict))
		for p, r := range m.mergeConflict {
			jm.MergeConflict[p] = r.toJSON()
		}
	}
	return json.Marshal(jm)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Manifest) UnmarshalJSON(b []byte) error {
	var jm jsonManifest
	if err := json.Unmarshal(b, &jm); err != nil {
		return err
	}

	var kind Kind
	switch jm.Kind {
	case "simple-update":
		kind = KindSimpleUpdate
	case "version-upgrade":
		kind = KindVersionUpgrade
	default:
		return fmt.Errorf("state: unknown manifest kind %q", jm.Kind)
	}

	out := &Manifest{kind: kind, version: jm.Version, cur: jm.Cur, new: jm.New, kernelDone: jm.KernelDone, worldDone: jm.WorldDone}
	if jm.MergeClean != nil {
		out.mergeClean = make(map[string]MergeRecord, len(jm.MergeClean))
		for p, j := range jm.MergeClean {
			r, err := j.toRecord()
			if err != nil {
				return fmt.Errorf("state: merge_clean[%s]: %w", p, err)
			}
			out.mergeClean[p] = r
		}
	}
	if jm.MergeConflict != nil {
		out.mergeConflict = make(map[string]MergeRecord, len(jm.MergeConflict))
		for p, j := range jm.MergeConflict {
			r, err := j.toRecord()
			if err != nil {
				return fmt.Errorf("state: merge_conflict[%s]: %w", p, err)
			}
			out.mergeConflict[p] = r
		}
	}

	*m = *out
	return nil
}
