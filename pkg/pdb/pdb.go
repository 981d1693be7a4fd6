package pdb

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/jtang613/pdbstream/pkg/config"
	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
	"github.com/jtang613/pdbstream/pkg/pdb/msf"
	"github.com/jtang613/pdbstream/pkg/pdb/streams"
	"github.com/jtang613/pdbstream/pkg/utils"
)

// Fixed stream indices.
const (
	StreamOldDirectory = 0
	StreamPDB          = 1 // PDB info stream
	StreamTPI          = 2 // type info stream
	StreamDBI          = 3 // debug info stream
	StreamIPI          = 4 // ID info stream
)

var fixedStreamNames = map[int]string{
	StreamOldDirectory: "<old directory>",
	StreamPDB:          "<pdb>",
	StreamTPI:          "<tpi>",
	StreamDBI:          "<dbi>",
	StreamIPI:          "<ipi>",
}

var logger = utils.GetLogger("pdb")

// PDB is a PDB file loaded into a memory stream.
type PDB struct {
	cfg     config.Config
	image   *memstream.Stream
	msf     *msf.MSF
	pdbInfo *streams.PDBInfo
}

// Open reads the file at path into memory and parses its container.
func Open(path string, cfg config.Config) (*PDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDB")
	}
	defer f.Close()
	return Load(f, cfg)
}

// Load reads a PDB from r into a memory stream sized by cfg.
func Load(r io.Reader, cfg config.Config) (*PDB, error) {
	image, err := cfg.NewStream()
	if err != nil {
		return nil, err
	}
	m, err := msf.Load(r, image)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load MSF")
	}

	p := &PDB{cfg: cfg, image: image, msf: m}
	if m.NumStreams() > StreamPDB {
		reader, err := m.StreamReader(StreamPDB)
		if err == nil {
			if p.pdbInfo, err = streams.ReadPDBInfo(reader); err != nil {
				logger.Warnf("PDB info stream unreadable: %s", err)
			}
		}
	}
	logger.Debugf("loaded %d byte image with %d streams", image.Len(), m.NumStreams())
	return p, nil
}

// Close drops the references to the in-memory image and its MSF view. No
// other resource is held, so the memory is reclaimed only by the garbage
// collector once no extracted stream or Image caller still references it.
// The PDB must not be used after Close.
func (p *PDB) Close() error {
	p.image = nil
	p.msf = nil
	return nil
}

// Image returns the memory stream holding the whole file.
func (p *PDB) Image() *memstream.Stream {
	return p.image
}

// Info returns basic file information.
func (p *PDB) Info() *Info {
	info := &Info{
		Size:      p.image.Len(),
		BlockSize: p.msf.BlockSize(),
		Streams:   p.msf.NumStreams(),
	}
	if p.pdbInfo != nil {
		info.GUID = p.pdbInfo.GUIDString()
		info.Age = p.pdbInfo.Age
		info.Signature = p.pdbInfo.Signature
		info.Version = p.pdbInfo.Version
		info.SymbolKey = p.pdbInfo.SymbolKey()
		info.NamedStreams = p.pdbInfo.NamedStreams
	}
	return info
}

// Streams lists every stream with its name when one is known.
func (p *PDB) Streams() []StreamInfo {
	names := make(map[int]string, len(fixedStreamNames))
	for i, name := range fixedStreamNames {
		names[i] = name
	}
	if p.pdbInfo != nil {
		for name, i := range p.pdbInfo.NamedStreams {
			names[int(i)] = name
		}
	}

	out := make([]StreamInfo, 0, p.msf.NumStreams())
	for i := 0; i < p.msf.NumStreams(); i++ {
		s, err := p.msf.Stream(i)
		if err != nil {
			continue
		}
		out = append(out, StreamInfo{Index: i, Name: names[i], Size: s.Size(), Blocks: len(s.Blocks())})
	}
	return out
}

// StreamIndex resolves a named stream such as "/names".
func (p *PDB) StreamIndex(name string) (int, bool) {
	if p.pdbInfo == nil {
		return 0, false
	}
	i, ok := p.pdbInfo.NamedStreams[name]
	return int(i), ok
}

// ExtractStream copies stream index into its own memory stream.
func (p *PDB) ExtractStream(index int) (*memstream.Stream, error) {
	s, err := p.msf.Stream(index)
	if err != nil {
		return nil, err
	}
	out, err := p.cfg.NewStream()
	if err != nil {
		return nil, err
	}
	if err := s.CopyTo(out); err != nil {
		return nil, errors.Wrapf(err, "failed to extract stream %d", index)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return out, nil
}
