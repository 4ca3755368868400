// Package bindiff implements application of binary patches fetched from a
// mirror's bp/<from>-<to> endpoint. No available library
// vendors a bsdiff-compatible codec, so this package defines a minimal,
// self-describing delta format (a sequence of copy-from-old / insert-new
// instructions) built entirely on the standard library; see DESIGN.md for
// why this is one of the few standard-library-only components.
package bindiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies the delta format in its first four bytes.
var Magic = [4]byte{'F', 'G', 'D', '1'}

// ErrBadMagic is returned when a patch stream does not start with Magic.
var ErrBadMagic = errors.New("bindiff: not a recognized patch stream")

// opKind distinguishes the two instruction types a patch is built from.
type opKind byte

const (
	opCopy   opKind = 1 // copy N bytes from old[src:src+N]
	opInsert opKind = 2 // emit N literal bytes that follow in the stream
)

// Apply reconstructs the "to" content by replaying patch against old,
// writing the result to dst. It returns an error if the patch stream is
// malformed or its instructions read past the end of old.
func Apply(dst io.Writer, old []byte, patch io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(patch, magic[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if magic != Magic {
		return ErrBadMagic
	}

	for {
		var kindLen [9]byte
		_, err := io.ReadFull(patch, kindLen[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("bindiff: truncated instruction: %w", err)
		}

		kind := opKind(kindLen[0])
		n := binary.BigEndian.Uint64(kindLen[1:])

		switch kind {
		case opCopy:
			var off [8]byte
			if _, err := io.ReadFull(patch, off[:]); err != nil {
				return fmt.Errorf("bindiff: truncated copy offset: %w", err)
			}
			src := binary.BigEndian.Uint64(off[:])
			if src+n > uint64(len(old)) {
				return fmt.Errorf("bindiff: copy instruction reads past end of source (src=%d len=%d have=%d)", src, n, len(old))
			}
			if _, err := dst.Write(old[src : src+n]); err != nil {
				return err
			}
		case opInsert:
			if _, err := io.CopyN(dst, patch, int64(n)); err != nil {
				return fmt.Errorf("bindiff: truncated insert payload: %w", err)
			}
		default:
			return fmt.Errorf("bindiff: unknown instruction kind %d", kind)
		}
	}
}

// Instruction is one step of a patch, used by Encode. It is exported so
// tests (and, if ever needed, an offline patch-generation tool) can build
// patch streams without round-tripping through a file.
type Instruction struct {
	Kind   opKind
	Offset uint64 // meaningful for Copy
	Len    uint64
	Data   []byte // meaningful for Insert
}

// Copy returns a copy instruction.
func Copy(offset, n uint64) Instruction { return Instruction{Kind: opCopy, Offset: offset, Len: n} }

// Insert returns an insert instruction.
func Insert(data []byte) Instruction {
	return Instruction{Kind: opInsert, Len: uint64(len(data)), Data: data}
}

// Encode writes a patch stream for instructions to w.
func Encode(w io.Writer, instructions []Instruction) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	for _, ins := range instructions {
		var kindLen [9]byte
		kindLen[0] = byte(ins.Kind)
		binary.BigEndian.PutUint64(kindLen[1:], ins.Len)
		if _, err := w.Write(kindLen[:]); err != nil {
			return err
		}
		switch ins.Kind {
		case opCopy:
			var off [8]byte
			binary.BigEndian.PutUint64(off[:], ins.Offset)
			if _, err := w.Write(off[:]); err != nil {
				return err
			}
		case opInsert:
			if _, err := w.Write(ins.Data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("bindiff: unknown instruction kind %d", ins.Kind)
		}
	}
	return nil
}
