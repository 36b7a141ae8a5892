// Package compress transparently decompresses sitemap and page bodies (C5).
// Go's net/http transport already unwraps gzip Content-Encoding for us, so
// this package exists for the cases it leaves alone: a raw .xml.gz fetched
// without content negotiation, and brotli, which net/http never handles.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// MaybeDecompress sniffs body for a gzip magic header and decompresses it;
// failing that, it tries brotli; failing that, it returns body unchanged.
// url is used only to annotate a gzip decompression failure, since a gzip
// magic header with a corrupt body is treated as fatal rather than silently
// passed through.
func MaybeDecompress(url string, body []byte) ([]byte, error) {
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip decompression failed for %s: %w", url, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decompression failed for %s: %w", url, err)
		}
		return out, nil
	}

	if out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body))); err == nil {
		return out, nil
	}

	return body, nil
}
