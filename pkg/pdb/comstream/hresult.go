package comstream

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

// HResult is a COM status code.
type HResult uint32

// Status codes produced by the adapter.
const (
	SOK              HResult = 0x00000000
	ENotImpl         HResult = 0x80004001
	EFail            HResult = 0x80004005
	EUnexpected      HResult = 0x8000FFFF
	EOutOfMemory     HResult = 0x8007000E
	EInvalidArg      HResult = 0x80070057
	CorENotSupported HResult = 0x80131515
)

// Failed reports whether hr is an error code.
func (hr HResult) Failed() bool {
	return hr&0x80000000 != 0
}

func (hr HResult) String() string {
	switch hr {
	case SOK:
		return "S_OK"
	case ENotImpl:
		return "E_NOTIMPL"
	case EFail:
		return "E_FAIL"
	case EUnexpected:
		return "E_UNEXPECTED"
	case EOutOfMemory:
		return "E_OUTOFMEMORY"
	case EInvalidArg:
		return "E_INVALIDARG"
	case CorENotSupported:
		return "COR_E_NOTSUPPORTED"
	default:
		return fmt.Sprintf("HRESULT(0x%08X)", uint32(hr))
	}
}

// Err converts hr back into the matching memstream error, or nil on success.
func (hr HResult) Err() error {
	switch {
	case !hr.Failed():
		return nil
	case hr == EInvalidArg:
		return errors.Wrap(memstream.ErrInvalidArgument, hr.String())
	case hr == EOutOfMemory:
		return errors.Wrap(memstream.ErrAllocationFailure, hr.String())
	case hr == CorENotSupported || hr == ENotImpl:
		return errors.Wrap(memstream.ErrNotSupported, hr.String())
	default:
		return errors.New(hr.String())
	}
}

// HResultOf maps err onto the status code a native caller expects.
func HResultOf(err error) HResult {
	switch {
	case err == nil:
		return SOK
	case errors.Is(err, memstream.ErrInvalidArgument):
		return EInvalidArg
	case errors.Is(err, memstream.ErrAllocationFailure):
		return EOutOfMemory
	case errors.Is(err, memstream.ErrNotSupported):
		return CorENotSupported
	default:
		return EFail
	}
}
