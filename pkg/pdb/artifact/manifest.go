package artifact

import (
	"encoding/json"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Format is an output encoding for manifests and reports.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", errors.Errorf("unknown format %q", name)
	}
}

// Encode writes v to w in format. pretty indents JSON and is ignored for CBOR.
func Encode(w io.Writer, v any, format Format, pretty bool) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(v)
	case FormatCBOR:
		data, err := cbor.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "failed to encode CBOR")
		}
		_, err = w.Write(data)
		return err
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

// WriteManifest records res next to an artifact.
func WriteManifest(w io.Writer, res *Result, format Format) error {
	return Encode(w, res, format, true)
}
