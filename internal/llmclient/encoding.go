package llmclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on every upstream call. Setting it by hand
// turns off the transport's transparent gzip, so decodeBody handles all three.
const acceptEncoding = "gzip, deflate, br"

// maxDecodedSize caps a decompressed upstream body.
const maxDecodedSize = 32 * 1024 * 1024

// decodeBody decompresses body according to its Content-Encoding header.
// Unknown encodings are returned unchanged.
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))
	if len(body) == 0 || encoding == "" || encoding == "identity" {
		return body, nil
	}

	var reader io.ReadCloser
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		reader = gz
	case "deflate":
		reader = flate.NewReader(bytes.NewReader(body))
	case "br":
		reader = io.NopCloser(brotli.NewReader(bytes.NewReader(body)))
	default:
		return body, nil
	}
	defer reader.Close()

	decoded, err := io.ReadAll(io.LimitReader(reader, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", encoding, err)
	}
	if len(decoded) > maxDecodedSize {
		return nil, fmt.Errorf("%s: decoded body exceeds %d bytes", encoding, maxDecodedSize)
	}
	return decoded, nil
}
