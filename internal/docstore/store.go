// Package docstore is the document database the tracker syncs against.
//
// A path with an odd number of segments names a collection
// (artifacts/app/users/u1/tasks), an even number names a document
// (artifacts/app/users/u1/settings/profile). Watch delivers the full current
// contents of a path on every change, never deltas.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidPath   = errors.New("invalid path")
	ErrClosed        = errors.New("store closed")
)

// Data is a decoded JSON document. Numbers decode as json.Number.
type Data = map[string]any

type Document struct {
	ID   string
	Path string
	Data Data
}

// Snapshot is the complete listing of a watched path at one point in time.
// For a document path it holds zero or one documents.
type Snapshot struct {
	Path string
	Docs []Document
}

// Exists reports whether a document snapshot found its document.
func (s Snapshot) Exists() bool {
	return len(s.Docs) > 0
}

// Subscription streams snapshots until closed. Snapshots is closed when the
// subscription ends; Err then reports why, nil after a regular Close.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Err() error
	Close()
}

// Store is the contract the tracker needs from a document database.
type Store interface {
	Watch(ctx context.Context, path string) (Subscription, error)
	Get(ctx context.Context, docPath string) (Document, error)
	// Create writes data only when no document exists at docPath, otherwise
	// it returns ErrAlreadyExists.
	Create(ctx context.Context, docPath string, data Data) error
	// Merge overwrites the given top-level fields and keeps the others,
	// creating the document when absent.
	Merge(ctx context.Context, docPath string, data Data) error
	// Update is Merge for documents that must already exist; it returns
	// ErrNotFound and writes nothing when the document is absent.
	Update(ctx context.Context, docPath string, data Data) error
	// Add stores data under a generated id in a collection.
	Add(ctx context.Context, collectionPath string, data Data) (string, error)
	Delete(ctx context.Context, docPath string) error
	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

type parsedPath struct {
	raw        string
	collection string
	docID      string
}

func (p parsedPath) isDoc() bool {
	return p.docID != ""
}

func parsePath(path string) (parsedPath, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return parsedPath{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return parsedPath{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	if len(segments)%2 == 1 {
		return parsedPath{raw: trimmed, collection: trimmed}, nil
	}
	return parsedPath{
		raw:        trimmed,
		collection: strings.Join(segments[:len(segments)-1], "/"),
		docID:      segments[len(segments)-1],
	}, nil
}

func docPath(path string) (parsedPath, error) {
	p, err := parsePath(path)
	if err != nil {
		return p, err
	}
	if !p.isDoc() {
		return p, fmt.Errorf("%w: %q is a collection", ErrInvalidPath, path)
	}
	return p, nil
}

func collectionPath(path string) (parsedPath, error) {
	p, err := parsePath(path)
	if err != nil {
		return p, err
	}
	if p.isDoc() {
		return p, fmt.Errorf("%w: %q is a document", ErrInvalidPath, path)
	}
	return p, nil
}

func encode(data Data) ([]byte, error) {
	if data == nil {
		data = Data{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

func decode(raw []byte) (Data, error) {
	data := Data{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}

// mergeData overlays patch onto a stored JSON payload.
func mergeData(current []byte, patch Data) ([]byte, error) {
	base, err := decode(current)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		base[k] = v
	}
	return encode(base)
}
