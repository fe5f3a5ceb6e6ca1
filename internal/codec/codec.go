// Package codec compresses and decompresses recorded trace files.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
}

// ForName picks the codec matching the extension of a file or object name.
// Names without a known compression extension are read as-is.
func ForName(name string) Codec {
	for _, c := range []Codec{Zstd{}, Gzip{}} {
		if strings.HasSuffix(name, "."+c.Extension()) {
			return c
		}
	}
	return Noop{}
}

// Compress returns data compressed with c.
func Compress(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing compressor: %w", err)
	}
	return buf.Bytes(), nil
}
