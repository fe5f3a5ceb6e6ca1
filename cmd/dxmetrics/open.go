package main

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/discochess/dxmetrics/internal/trace"
	"github.com/discochess/dxmetrics/internal/tracestore"
	"github.com/discochess/dxmetrics/internal/tracestore/diskstore"
	"github.com/discochess/dxmetrics/internal/tracestore/gcsstore"
	"github.com/discochess/dxmetrics/internal/tracestore/s3store"
)

// openTrace resolves a trace URI to the store holding it and the trace's
// name within that store.
func openTrace(ctx context.Context, uri string) (tracestore.Store, string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		abs, err := filepath.Abs(uri)
		if err != nil {
			return nil, "", fmt.Errorf("resolving path: %w", err)
		}
		st, err := diskstore.New(filepath.Dir(abs))
		if err != nil {
			return nil, "", err
		}
		return st, filepath.Base(abs), nil
	}

	dir, name := path.Split(strings.TrimPrefix(u.Path, "/"))
	if u.Host == "" || name == "" {
		return nil, "", fmt.Errorf("want %s://bucket/object, got %q", u.Scheme, uri)
	}

	var st tracestore.Store
	switch u.Scheme {
	case "gs":
		st, err = gcsstore.New(ctx, u.Host, gcsstore.WithPrefix(dir))
	case "s3":
		st, err = s3store.New(ctx, u.Host, s3store.WithPrefix(dir))
	default:
		return nil, "", fmt.Errorf("unsupported trace location %q", u.Scheme)
	}
	if err != nil {
		return nil, "", err
	}
	return st, name, nil
}

// loadTrace reads and parses the trace at uri.
func loadTrace(ctx context.Context, uri string) ([]trace.Step, error) {
	st, name, err := openTrace(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return readSteps(ctx, st, name)
}

// recordTrace encodes steps and writes them to uri, compressed according to
// its extension.
func recordTrace(ctx context.Context, uri string, steps []trace.Step) error {
	st, name, err := openTrace(ctx, uri)
	if err != nil {
		return err
	}
	defer st.Close()
	return writeSteps(ctx, st, name, steps)
}

func readSteps(ctx context.Context, st tracestore.Store, name string) ([]trace.Step, error) {
	data, err := st.ReadTrace(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return trace.Parse(bytes.NewReader(data))
}

func writeSteps(ctx context.Context, st tracestore.Store, name string, steps []trace.Step) error {
	data, err := trace.Marshal(steps)
	if err != nil {
		return err
	}
	if err := st.WriteTrace(ctx, name, data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
