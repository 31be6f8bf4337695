// Package pgstore stores documents as JSONB rows in PostgreSQL and turns
// LISTEN/NOTIFY change events into subscription snapshots.
package pgstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/eskrenkovic/fear-tracker-go/internal/docstore"
	"github.com/eskrenkovic/fear-tracker-go/internal/modules/core"

	"github.com/eskrenkovic/tql"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var _ docstore.Store = (*Store)(nil)

type documentRow struct {
	Path string `db:"path"`
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger

	entropyMu sync.Mutex
	entropy   io.Reader

	watcher  *docstore.Watcher
	listener *changeListener
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a store over db. connectionString is used for the dedicated
// LISTEN connection.
func New(db *sql.DB, connectionString string, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		logger:  zap.NewNop(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		watcher: docstore.NewWatcher(),
	}

	for _, opt := range opts {
		opt(s)
	}

	listener, err := listen(connectionString, s.watcher, s.logger)
	if err != nil {
		return nil, err
	}
	s.listener = listener

	return s, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return docstore.Document{}, err
	}

	const query = `
		SELECT
			path, id, data
		FROM
			documents
		WHERE
			path = $1;`

	rows, err := tql.Query[documentRow](ctx, s.db, query, path)
	if err != nil {
		return docstore.Document{}, err
	}

	if len(rows) == 0 {
		return docstore.Document{}, fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
	}

	return toDocument(rows[0])
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, q.Collection)
	}

	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := tql.Query[documentRow](ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if !docstore.ValidCollection(collection) {
		return "", fmt.Errorf("%w: %q", docstore.ErrInvalidPath, collection)
	}

	id := s.newID()
	if err := s.Set(ctx, docstore.Join(collection, id), fields); err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields, opts ...docstore.SetOption) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	options := docstore.ApplySetOptions(opts...)

	stmt := `
		INSERT INTO
			documents (path, collection, id, data)
		VALUES
			($1, $2, $3, CAST($4 AS jsonb))
		ON CONFLICT (path) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now();`
	if options.Merge {
		stmt = `
		INSERT INTO
			documents (path, collection, id, data)
		VALUES
			($1, $2, $3, CAST($4 AS jsonb))
		ON CONFLICT (path) DO UPDATE SET
			data = documents.data || EXCLUDED.data,
			updated_at = now();`
	}

	return core.Tx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		data, err := encodeAt(ctx, tx, fields)
		if err != nil {
			return err
		}

		_, err = tql.Exec(ctx, tx, stmt, path, collection, id, data)
		return err
	})
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return err
	}

	const stmt = `
		UPDATE
			documents
		SET
			data = data || CAST($2 AS jsonb),
			updated_at = now()
		WHERE
			path = $1;`

	return core.Tx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		data, err := encodeAt(ctx, tx, fields)
		if err != nil {
			return err
		}

		result, err := tql.Exec(ctx, tx, stmt, path, data)
		if err != nil {
			return err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			return fmt.Errorf("%s: %w", path, docstore.ErrNotFound)
		}

		return nil
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return err
	}

	const stmt = `
		DELETE FROM
			documents
		WHERE
			path = $1;`

	_, err := tql.Exec(ctx, s.db, stmt, path)
	return err
}

func (s *Store) SubscribeDoc(ctx context.Context, path string) (docstore.Subscription, error) {
	if _, _, err := docstore.SplitPath(path); err != nil {
		return nil, err
	}

	match := func(changed string) bool {
		return changed == path
	}

	load := func(ctx context.Context) ([]docstore.Document, error) {
		doc, err := s.Get(ctx, path)
		switch {
		case err == nil:
			return []docstore.Document{doc}, nil
		case docstore.IsNotFound(err):
			return []docstore.Document{}, nil
		default:
			return nil, err
		}
	}

	return s.watcher.Watch(match, load)
}

func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, q.Collection)
	}

	match := func(changed string) bool {
		collection, _, err := docstore.SplitPath(changed)
		return err == nil && collection == q.Collection
	}

	load := func(ctx context.Context) ([]docstore.Document, error) {
		return s.Query(ctx, q)
	}

	return s.watcher.Watch(match, load)
}

func (s *Store) Close() error {
	err := s.watcher.Close()
	if s.listener != nil {
		if closeErr := s.listener.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

// encodeAt serializes fields, resolving server timestamps with the database
// clock of the surrounding transaction.
func encodeAt(ctx context.Context, tx *sql.Tx, fields docstore.Fields) (string, error) {
	const query = `SELECT CAST(extract(epoch FROM now()) * 1000000 AS bigint);`

	micros, err := tql.Query[int64](ctx, tx, query)
	if err != nil {
		return "", err
	}

	if len(micros) == 0 {
		return "", fmt.Errorf("failed to read database clock")
	}

	now := time.UnixMicro(micros[0]).UTC()

	data, err := json.Marshal(encodeFields(docstore.ResolveTimestamps(fields, now)))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func encodeFields(fields docstore.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(docstore.TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(docstore.TimeLayout)
	case docstore.Fields:
		return encodeFields(t)
	case map[string]any:
		return encodeFields(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = encodeValue(t[i])
		}
		return out
	default:
		return v
	}
}

func toDocument(row documentRow) (docstore.Document, error) {
	fields := make(docstore.Fields)
	if err := json.Unmarshal(row.Data, &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s: %w", row.Path, err)
	}

	return docstore.Document{ID: row.ID, Path: row.Path, Fields: fields}, nil
}

func buildQuery(q docstore.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Collection}

	b.WriteString(`
		SELECT
			path, id, data
		FROM
			documents
		WHERE
			collection = $1`)

	for _, f := range q.Filters {
		args = append(args, filterText(f.Value))
		field := quoteField(f.Field)

		switch f.Op {
		case docstore.OpEqual:
			fmt.Fprintf(&b, "\n\t\t\tAND data->>%s = $%d", field, len(args))
		case docstore.OpArrayContains:
			fmt.Fprintf(&b, "\n\t\t\tAND data->%s @> jsonb_build_array(CAST($%d AS text))", field, len(args))
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	if q.OrderBy != "" {
		direction := "ASC"
		if q.Direction == docstore.Desc {
			direction = "DESC"
		}
		fmt.Fprintf(&b, "\n\t\tORDER BY\n\t\t\tdata->>%s COLLATE \"C\" %s, id %s", quoteField(q.OrderBy), direction, direction)
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, "\n\t\tLIMIT %d", q.Limit)
	}

	b.WriteString(";")
	return b.String(), args, nil
}

func quoteField(field string) string {
	return "'" + strings.ReplaceAll(field, "'", "''") + "'"
}

// filterText renders a filter value the way ->> renders the stored value.
func filterText(v any) string {
	switch t := encodeValue(v).(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
