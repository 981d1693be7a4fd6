// Package comstream exposes a memstream.Stream through the shape of the
// COM IStream contract a native symbol writer calls: byte counts and status
// codes instead of Go errors, a numeric seek origin and a STATSTG record.
//
// Every call converts errors to an HResult and recovers panics into
// E_UNEXPECTED, so nothing escapes across the boundary.
package comstream

import (
	"fmt"
	"io"
	"math"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
	"github.com/jtang613/pdbstream/pkg/utils"
)

var logger = utils.GetLogger("comstream")

// SeekOrigin is the IStream seek origin.
type SeekOrigin uint32

// Seek origins, numbered as STREAM_SEEK_SET, STREAM_SEEK_CUR and STREAM_SEEK_END.
const (
	StreamSeekSet SeekOrigin = 0
	StreamSeekCur SeekOrigin = 1
	StreamSeekEnd SeekOrigin = 2
)

// StatFlag selects which STATSTG fields are filled. Names are never
// returned, so both values behave the same.
type StatFlag uint32

const (
	StatFlagDefault StatFlag = 0
	StatFlagNoName  StatFlag = 1
)

// StgTyStream is the STATSTG type of a stream object.
const StgTyStream = 2

// StatStg mirrors the fields of STATSTG a memory stream can fill.
type StatStg struct {
	Name string
	Type uint32
	Size uint64
}

// ByteStream is the contract the native writer relies on.
type ByteStream interface {
	Read(p []byte) (uint32, HResult)
	Write(p []byte) (uint32, HResult)
	Seek(move int64, origin SeekOrigin) (uint64, HResult)
	SetSize(size uint64) HResult
	CopyTo(dst ByteStream, n uint64) (read, written uint64, hr HResult)
	Commit(flags uint32) HResult
	Revert() HResult
	LockRegion(offset, n uint64, lockType uint32) HResult
	UnlockRegion(offset, n uint64, lockType uint32) HResult
	Stat(flag StatFlag) (StatStg, HResult)
	Clone() (ByteStream, HResult)
}

// Adapter implements ByteStream on top of a memory stream.
type Adapter struct {
	stream *memstream.Stream
}

var _ ByteStream = (*Adapter)(nil)

// NewAdapter wraps s.
func NewAdapter(s *memstream.Stream) *Adapter {
	return &Adapter{stream: s}
}

// Stream returns the wrapped memory stream.
func (a *Adapter) Stream() *memstream.Stream {
	return a.stream
}

// guard runs fn and turns a panic into E_UNEXPECTED.
func guard(op string, fn func() HResult) (hr HResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("%s panicked: %v", op, r)
			hr = EUnexpected
		}
	}()
	hr = fn()
	if hr.Failed() {
		logger.Debugf("%s failed: %s", op, hr)
	}
	return hr
}

// Read copies up to len(p) bytes from the current position. Reading at or
// beyond the end succeeds with a short or zero count.
func (a *Adapter) Read(p []byte) (uint32, HResult) {
	var n int
	hr := guard("Read", func() HResult {
		var err error
		n, err = a.stream.Read(p)
		if err == io.EOF {
			err = nil
		}
		return HResultOf(err)
	})
	return uint32(n), hr
}

// Write stores all of p at the current position.
func (a *Adapter) Write(p []byte) (uint32, HResult) {
	var n int
	hr := guard("Write", func() HResult {
		var err error
		n, err = a.stream.Write(p)
		return HResultOf(err)
	})
	return uint32(n), hr
}

// Seek moves the position relative to origin and returns the new position.
func (a *Adapter) Seek(move int64, origin SeekOrigin) (uint64, HResult) {
	var pos int64
	hr := guard("Seek", func() HResult {
		var whence int
		switch origin {
		case StreamSeekSet:
			whence = io.SeekStart
		case StreamSeekCur:
			whence = io.SeekCurrent
		case StreamSeekEnd:
			whence = io.SeekEnd
		default:
			logger.Debugf("origin (%d) is invalid", origin)
			return EInvalidArg
		}
		var err error
		pos, err = a.stream.Seek(move, whence)
		return HResultOf(err)
	})
	return uint64(pos), hr
}

// SetSize sets the logical length of the stream.
func (a *Adapter) SetSize(size uint64) HResult {
	return guard("SetSize", func() HResult {
		if size > math.MaxInt64 {
			return EInvalidArg
		}
		return HResultOf(a.stream.SetSize(int64(size)))
	})
}

// CopyTo is not supported.
func (a *Adapter) CopyTo(dst ByteStream, n uint64) (uint64, uint64, HResult) {
	hr := guard("CopyTo", func() HResult {
		_, _, err := a.stream.CopyToStream(nil, int64(min(n, math.MaxInt64)))
		return HResultOf(err)
	})
	return 0, 0, hr
}

// Commit always succeeds.
func (a *Adapter) Commit(flags uint32) HResult {
	return guard("Commit", func() HResult {
		return HResultOf(a.stream.Commit(flags))
	})
}

// Revert is not supported.
func (a *Adapter) Revert() HResult {
	return guard("Revert", func() HResult {
		return HResultOf(a.stream.Revert())
	})
}

// LockRegion is not supported.
func (a *Adapter) LockRegion(offset, n uint64, lockType uint32) HResult {
	return guard("LockRegion", func() HResult {
		return HResultOf(a.stream.LockRegion(int64(offset), int64(n), lockType))
	})
}

// UnlockRegion is not supported.
func (a *Adapter) UnlockRegion(offset, n uint64, lockType uint32) HResult {
	return guard("UnlockRegion", func() HResult {
		return HResultOf(a.stream.UnlockRegion(int64(offset), int64(n), lockType))
	})
}

// Stat reports the logical length; no other field carries information.
func (a *Adapter) Stat(flag StatFlag) (StatStg, HResult) {
	var st StatStg
	hr := guard("Stat", func() HResult {
		if flag != StatFlagDefault && flag != StatFlagNoName {
			return EInvalidArg
		}
		st = StatStg{Type: StgTyStream, Size: uint64(a.stream.Stat().Size)}
		return SOK
	})
	return st, hr
}

// Clone is not supported.
func (a *Adapter) Clone() (ByteStream, HResult) {
	hr := guard("Clone", func() HResult {
		_, err := a.stream.Clone()
		return HResultOf(err)
	})
	return nil, hr
}

// String describes the adapter for log output.
func (a *Adapter) String() string {
	return fmt.Sprintf("comstream(len=%d pos=%d chunks=%d)", a.stream.Len(), a.stream.Position(), a.stream.ChunkCount())
}
