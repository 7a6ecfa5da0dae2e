package parser

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// decodeWithFallback buffers r, checks whether it's valid UTF-8, and
// if not, transcodes it from Windows-1252 (the most common non-UTF-8
// encoding in supplier feeds) — a lossy but non-fatal fallback per
// spec.md §4.2 "encoding errors cause a fallback to lossy-UTF8".
func decodeWithFallback(r io.Reader) (io.Reader, bool, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}

	if utf8.Valid(raw) {
		return bytes.NewReader(raw), false, nil
	}

	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		// Even the fallback failed to transform; hand back the raw
		// bytes so the CSV reader can still attempt a best effort pass.
		return bytes.NewReader(raw), true, nil
	}
	return bytes.NewReader(decoded), true, nil
}
