// Package streams parses the fixed-index streams of a PDB.
package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jtang613/pdbstream/pkg/utils"
)

var logger = utils.GetLogger("streams")

// PDB info stream versions.
const (
	PDBStreamVersionVC2     = 19941610
	PDBStreamVersionVC4     = 19950623
	PDBStreamVersionVC41    = 19950814
	PDBStreamVersionVC50    = 19960307
	PDBStreamVersionVC98    = 19970604
	PDBStreamVersionVC70Dep = 19990604
	PDBStreamVersionVC70    = 20000404
	PDBStreamVersionVC80    = 20030901
	PDBStreamVersionVC110   = 20091201
	PDBStreamVersionVC140   = 20140508
)

// pdbInfoHeaderSize is version, signature and age followed by the GUID.
const pdbInfoHeaderSize = 12 + 16

// PDBInfo is the content of the PDB info stream (stream 1).
type PDBInfo struct {
	Version      uint32
	Signature    uint32 // creation timestamp
	Age          uint32 // number of times the PDB was written
	GUID         [16]byte
	NamedStreams map[string]uint32
}

// ReadPDBInfo parses the info stream header and its named stream map.
// Older PDBs may end after the header; a missing or truncated map yields
// whatever entries were complete.
func ReadPDBInfo(r io.Reader) (*PDBInfo, error) {
	var head [pdbInfoHeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("failed to read PDB info header: %w", err)
	}

	le := binary.LittleEndian
	info := &PDBInfo{
		Version:      le.Uint32(head[0:]),
		Signature:    le.Uint32(head[4:]),
		Age:          le.Uint32(head[8:]),
		NamedStreams: make(map[string]uint32),
	}
	copy(info.GUID[:], head[12:])

	if err := readNamedStreams(r, info.NamedStreams); err != nil {
		logger.Debugf("named stream map incomplete after %d entries: %s", len(info.NamedStreams), err)
	}
	return info, nil
}

// readNamedStreams decodes the string buffer and hash table that map
// stream names to stream indices.
func readNamedStreams(r io.Reader, into map[string]uint32) error {
	word := func() (uint32, error) {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(b[:]), nil
	}
	bitVector := func() ([]uint32, error) {
		n, err := word()
		if err != nil {
			return nil, err
		}
		words := make([]uint32, 0, min(n, 1024))
		for i := uint32(0); i < n; i++ {
			w, err := word()
			if err != nil {
				return nil, err
			}
			words = append(words, w)
		}
		return words, nil
	}

	strSize, err := word()
	if err != nil {
		return err
	}
	strBuf := make([]byte, strSize)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return err
	}
	if _, err := word(); err != nil { // entry count
		return err
	}
	capacity, err := word()
	if err != nil {
		return err
	}
	present, err := bitVector()
	if err != nil {
		return err
	}
	if _, err := bitVector(); err != nil { // deleted
		return err
	}

	// Buckets past the present bit vector can never be set.
	buckets := min(uint64(capacity), uint64(len(present))*32)
	for bucket := uint32(0); uint64(bucket) < buckets; bucket++ {
		if !isBitSet(present, bucket) {
			continue
		}
		keyOffset, err := word()
		if err != nil {
			return err
		}
		streamIndex, err := word()
		if err != nil {
			return err
		}
		if keyOffset < strSize {
			into[cString(strBuf[keyOffset:])] = streamIndex
		}
	}
	return nil
}

// UUID returns the GUID in RFC 4122 byte order. On disk the first three
// fields are little-endian.
func (p *PDBInfo) UUID() uuid.UUID {
	var u uuid.UUID
	copy(u[:], p.GUID[:])
	u[0], u[1], u[2], u[3] = p.GUID[3], p.GUID[2], p.GUID[1], p.GUID[0]
	u[4], u[5] = p.GUID[5], p.GUID[4]
	u[6], u[7] = p.GUID[7], p.GUID[6]
	return u
}

// GUIDString returns the GUID as 32 upper-case hex digits.
func (p *PDBInfo) GUIDString() string {
	return strings.ToUpper(strings.ReplaceAll(p.UUID().String(), "-", ""))
}

// SymbolKey returns the GUID followed by the age in hex, the key symbol
// servers index a PDB under.
func (p *PDBInfo) SymbolKey() string {
	return fmt.Sprintf("%s%X", p.GUIDString(), p.Age)
}

func isBitSet(words []uint32, n uint32) bool {
	if n/32 >= uint32(len(words)) {
		return false
	}
	return words[n/32]&(1<<(n%32)) != 0
}

func cString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}
