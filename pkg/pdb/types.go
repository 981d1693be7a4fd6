// Package pdb provides high-level access to Microsoft PDB debug files held
// in memory.
package pdb

// Info summarizes a PDB file.
type Info struct {
	Size         int64             `json:"size" cbor:"size"`
	BlockSize    uint32            `json:"block_size" cbor:"block_size"`
	Streams      int               `json:"streams" cbor:"streams"`
	GUID         string            `json:"guid,omitempty" cbor:"guid,omitempty"`
	Age          uint32            `json:"age,omitempty" cbor:"age,omitempty"`
	Signature    uint32            `json:"signature,omitempty" cbor:"signature,omitempty"`
	Version      uint32            `json:"version,omitempty" cbor:"version,omitempty"`
	SymbolKey    string            `json:"symbol_key,omitempty" cbor:"symbol_key,omitempty"`
	NamedStreams map[string]uint32 `json:"named_streams,omitempty" cbor:"named_streams,omitempty"`
}

// StreamInfo describes one stream of the container.
type StreamInfo struct {
	Index  int    `json:"index" cbor:"index"`
	Name   string `json:"name,omitempty" cbor:"name,omitempty"`
	Size   uint32 `json:"size" cbor:"size"`
	Blocks int    `json:"blocks" cbor:"blocks"`
}
