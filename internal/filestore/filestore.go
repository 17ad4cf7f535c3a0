package filestore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists at the location.
var ErrNotFound = errors.New("stored file not found")

// Object is an opened stored file. PDF decoding needs random access, so
// every backend hands out an io.ReaderAt together with its size.
type Object interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type Store interface {
	// Save writes r under a key derived from ownerID and filename and returns
	// the location to persist on the document.
	Save(ctx context.Context, ownerID, filename string, r io.Reader, size int64) (string, error)
	Open(ctx context.Context, location string) (Object, error)
	Delete(ctx context.Context, location string) error
}
