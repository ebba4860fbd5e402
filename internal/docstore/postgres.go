package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shoreline/internal/database"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// notifyChannel carries the collection name of every committed write.
const notifyChannel = "docstore"

// PostgresStore keeps documents as JSONB rows of the documents table.
type PostgresStore struct {
	db     *database.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("shoreline/docstore"),
	}
}

func (s *PostgresStore) start(ctx context.Context, op, collection string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "docstore."+op, trace.WithAttributes(
		attribute.String("docstore.collection", collection),
	))
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (snap *Snapshot, err error) {
	ctx, span := s.start(ctx, "Get", collection)
	defer func() { finish(span, err) }()

	query := `
		SELECT data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2`

	snap = &Snapshot{ID: id}
	var data []byte
	err = s.db.QueryRowContext(ctx, query, collection, id).Scan(&data, &snap.CreateTime, &snap.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	snap.Data = data
	return snap, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data any) (err error) {
	ctx, span := s.start(ctx, "Set", collection)
	defer func() { finish(span, err) }()

	doc, err := encode(data)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err = upsert(ctx, tx, collection, id, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func upsert(ctx context.Context, tx *sql.Tx, collection, id string, doc []byte) error {
	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()`

	if _, err := tx.ExecContext(ctx, query, collection, id, doc); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return notify(ctx, tx, collection)
}

// notify is delivered to listeners only when the surrounding tx commits.
func notify(ctx context.Context, tx *sql.Tx, collection string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("notify %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) (err error) {
	ctx, span := s.start(ctx, "Update", collection)
	defer func() { finish(span, err) }()

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`

	res, err := tx.ExecContext(ctx, query, collection, id, patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err = notify(ctx, tx, collection); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", collection)
	defer func() { finish(span, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err = notify(ctx, tx, collection); err != nil {
		return err
	}
	return tx.Commit()
}

// buildQuery turns filters into JSONB containment predicates so the GIN
// index on data can serve them.
func buildQuery(collection string, filters []Filter) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range filters {
		c, err := containment(f)
		if err != nil {
			return "", nil, err
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter on %s: %w", f.Field, err)
		}
		args = append(args, string(raw))
		fmt.Fprintf(&b, " AND data @> $%d::jsonb", len(args))
	}
	b.WriteString(" ORDER BY created_at, id")
	return b.String(), args, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) (docs []Snapshot, err error) {
	ctx, span := s.start(ctx, "Query", collection)
	defer func() { finish(span, err) }()

	query, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs = []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var data []byte
		if err = rows.Scan(&snap.ID, &data, &snap.CreateTime, &snap.UpdateTime); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		snap.Data = data
		docs = append(docs, snap)
	}
	span.SetAttributes(attribute.Int("docstore.results", len(docs)))
	return docs, rows.Err()
}

func (s *PostgresStore) RunTransaction(ctx context.Context, collection, id string, fn TxFunc) (err error) {
	ctx, span := s.start(ctx, "RunTransaction", collection)
	defer func() { finish(span, err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
		FOR UPDATE`

	var current *Snapshot
	snap := Snapshot{ID: id}
	var data []byte
	err = tx.QueryRowContext(ctx, query, collection, id).Scan(&data, &snap.CreateTime, &snap.UpdateTime)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("lock %s/%s: %w", collection, id, err)
	default:
		snap.Data = data
		current = &snap
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return tx.Commit()
	}

	doc, err := encode(next)
	if err != nil {
		return err
	}
	if err = upsert(ctx, tx, collection, id, doc); err != nil {
		return err
	}
	return tx.Commit()
}

// Subscribe opens a dedicated LISTEN connection. Every notification for the
// collection, and every reconnect, triggers a fresh snapshot.
func (s *PostgresStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) error {
	listener := pq.NewListener(s.db.DSN(), 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Error("Docstore listener event", "collection", collection, "event", ev, "error", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	deliver := func() {
		docs, err := s.Query(ctx, collection)
		if err != nil {
			slog.Error("Failed to load collection snapshot", "collection", collection, "error", err)
			return
		}
		fn(docs)
	}
	deliver()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			// nil after a reconnect: changes may have been missed
			if n == nil || n.Extra == collection {
				deliver()
			}
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}
