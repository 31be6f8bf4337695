package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
	ErrClosed      = errors.New("store closed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TimeLayout is fixed width and always UTC so that lexical ordering of
// encoded timestamps matches chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a write-time marker. Stores replace it with their own
// clock when the write is applied.
var ServerTimestamp any = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

type Document struct {
	ID     string
	Path   string
	Fields Fields
}

// Decode maps the document fields onto out using `doc` struct tags.
func (d Document) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "doc",
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(map[string]any(d.Fields)); err != nil {
		return fmt.Errorf("decode %s: %w", d.Path, err)
	}

	return nil
}

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Equal(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

// Snapshot is the complete current result of a subscription. Consumers
// replace their state with it; it is never a delta.
type Snapshot struct {
	Docs []Document
	Err  error
}

type Subscription interface {
	Snapshots() <-chan Snapshot
	Close() error
}

type SetOptions struct {
	Merge bool
}

type SetOption func(*SetOptions)

// Merge keeps top-level fields not present in the write.
func Merge() SetOption {
	return func(o *SetOptions) {
		o.Merge = true
	}
}

func ApplySetOptions(opts ...SetOption) SetOptions {
	var o SetOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)

	// Add creates a document with a store-assigned id and returns the id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Set(ctx context.Context, path string, fields Fields, opts ...SetOption) error
	// Update fails with ErrNotFound when the document does not exist.
	Update(ctx context.Context, path string, fields Fields) error
	Delete(ctx context.Context, path string) error

	SubscribeDoc(ctx context.Context, path string) (Subscription, error)
	SubscribeQuery(ctx context.Context, q Query) (Subscription, error)

	Close() error
}
