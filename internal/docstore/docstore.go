// Package docstore is a small document database: JSON documents grouped in
// collections, addressed by id, with equality/array-membership queries,
// row-locked read-modify-write transactions and realtime collection
// snapshots.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Snapshot is one document as read from the store.
type Snapshot struct {
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	CreateTime time.Time       `json:"createTime"`
	UpdateTime time.Time       `json:"updateTime"`
}

// DataTo decodes the document into v.
func (s Snapshot) DataTo(v any) error {
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", s.ID, err)
	}
	return nil
}

type Op string

const (
	OpEq            Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query. Field may be a dotted path into nested objects.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// TxFunc receives the current document (nil when it does not exist) and
// returns the value to store. Returning a nil value leaves the document
// untouched; returning an error aborts the transaction.
type TxFunc func(current *Snapshot) (any, error)

// SnapshotFunc receives the full contents of a collection.
type SnapshotFunc func(docs []Snapshot)

type Store interface {
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Set(ctx context.Context, collection, id string, data any) error
	// Update merges fields into the top level of an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	RunTransaction(ctx context.Context, collection, id string, fn TxFunc) error
	// Subscribe calls fn with the current collection contents and again after
	// every write to it, until ctx is done. Delivery is at-least-once.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) error
}

// containment builds the JSON object a document must contain to satisfy f.
func containment(f Filter) (map[string]any, error) {
	if f.Field == "" {
		return nil, fmt.Errorf("filter without field")
	}
	var leaf any
	switch f.Op {
	case OpEq:
		leaf = f.Value
	case OpArrayContains:
		leaf = []any{f.Value}
	default:
		return nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}

	parts := strings.Split(f.Field, ".")
	for i := len(parts) - 1; i > 0; i-- {
		leaf = map[string]any{parts[i]: leaf}
	}
	return map[string]any{parts[0]: leaf}, nil
}

func encode(data any) ([]byte, error) {
	var b []byte
	switch v := data.(type) {
	case json.RawMessage:
		b = v
	case []byte:
		b = v
	default:
		var err error
		if b, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	if len(b) == 0 || b[0] != '{' {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return b, nil
}
