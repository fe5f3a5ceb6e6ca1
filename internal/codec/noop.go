package codec

import "io"

// Compile-time check that Noop implements Codec.
var _ Codec = Noop{}

// Noop passes data through uncompressed.
type Noop struct{}

// Reader returns r wrapped as a ReadCloser.
func (Noop) Reader(r io.Reader) (io.ReadCloser, error) {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(r), nil
}

// Writer returns w wrapped as a WriteCloser. Closing it does not close w.
func (Noop) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Extension returns empty string.
func (Noop) Extension() string {
	return ""
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
