package docstore

import (
	"context"
	"errors"
	"time"
)

// Collection names used by the messaging core.
const (
	CollectionUsers    = "users"
	CollectionChats    = "chat-info"
	CollectionMembers  = "chat-members"
	CollectionMessages = "messages"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("docstore: document not found")

// Fields is the schemaless body of a document.
type Fields map[string]interface{}

// Doc is a stored document together with its id.
type Doc struct {
	ID     string
	Fields Fields
}

type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value. Add and Set replace it with a
// store-assigned timestamp that is monotonic per store, so message ordering
// does not depend on client clocks.
var ServerTimestamp = serverTimestamp{}

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpLt Op = "<"
	OpIn Op = "in"
)

// FieldDocID filters on the document id instead of a body field.
const FieldDocID = "__id__"

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

func Where(field string, op Op, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query describes a filtered, optionally ordered and bounded read.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Subscription delivers coalesced change signals for a watched query: one
// signal for the initial snapshot, then one per matching change. The channel
// is closed when the subscription ends; Err reports why.
type Subscription interface {
	Changes() <-chan struct{}
	Err() error
	Close()
}

// Store is the document-store adapter consumed by the messaging core.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Set(ctx context.Context, collection, id string, fields Fields) error
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Watch(ctx context.Context, collection string, q Query) (Subscription, error)
}

// String reads a string field, returning "" when absent or mistyped.
func (d Doc) String(key string) string {
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Time reads a time field, returning the zero time when absent or mistyped.
func (d Doc) Time(key string) time.Time {
	if v, ok := d.Fields[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
