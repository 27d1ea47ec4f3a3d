package mongostore

import (
	"context"
	"sync"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongostore implements docstore.Store on a MongoDB database. Watch is backed
// by change streams, which require a replica-set deployment.
type Mongostore struct {
	db *mongo.Database

	mu       sync.Mutex
	lastTime time.Time
}

// Connect dials MongoDB, verifies the connection and prepares the indexes the
// messaging core queries against.
func Connect(ctx context.Context, uri, database string) (*Mongostore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	s := &Mongostore{db: client.Database(database)}
	s.ensureIndexes(ctx)
	return s, nil
}

// Close disconnects the underlying client.
func (s *Mongostore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *Mongostore) ensureIndexes(ctx context.Context) {
	// Best effort; queries still work unindexed.
	_, _ = s.db.Collection(docstore.CollectionMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	_, _ = s.db.Collection(docstore.CollectionMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	_, _ = s.db.Collection(docstore.CollectionMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}},
	})
}

// serverNow assigns write timestamps that never repeat or go backwards within
// this process; Mongo itself is not consulted so inserts stay single writes.
// Millisecond quantization matches both BSON DateTime precision and the wire
// cursor, so a client paging with a returned timestamp loses nothing.
func (s *Mongostore) serverNow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Millisecond)
	}
	s.lastTime = now
	return now
}

func (s *Mongostore) resolveTimestamps(fields docstore.Fields) bson.M {
	out := make(bson.M, len(fields))
	for k, v := range fields {
		if v == docstore.ServerTimestamp {
			out[k] = s.serverNow()
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Mongostore) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Doc{}, err
	}
	return docFromRaw(id, raw), nil
}

func (s *Mongostore) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Doc, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filterToBSON(q.Filters, ""), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []docstore.Doc
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		id, _ := raw["_id"].(string)
		docs = append(docs, docFromRaw(id, raw))
	}
	return docs, cur.Err()
}

func (s *Mongostore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	doc := s.resolveTimestamps(fields)
	doc["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Mongostore) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	doc := s.resolveTimestamps(fields)
	_, err := s.db.Collection(collection).ReplaceOne(
		ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Mongostore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": s.resolveTimestamps(fields)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Mongostore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Mongostore) Watch(ctx context.Context, collection string, q docstore.Query) (docstore.Subscription, error) {
	// Delete events carry no fullDocument, so they are passed through
	// unconditionally; watchers re-derive state from the store on every
	// signal, which makes the occasional spurious wakeup harmless.
	match := bson.M{"$or": bson.A{
		bson.M{"operationType": "delete"},
		filterToBSON(q.Filters, "fullDocument."),
	}}
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: match}}}

	streamCtx, cancel := context.WithCancel(ctx)
	cs, err := s.db.Collection(collection).Watch(
		streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &streamSubscription{
		ch:     make(chan struct{}, 1),
		cancel: cancel,
	}
	// Initial snapshot signal.
	sub.ch <- struct{}{}

	go func() {
		defer cs.Close(context.Background())
		for cs.Next(streamCtx) {
			sub.signal()
		}
		sub.fail(cs.Err())
	}()

	return sub, nil
}

type streamSubscription struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	ch     chan struct{}
	closed bool
	err    error
}

func (sub *streamSubscription) Changes() <-chan struct{} { return sub.ch }

func (sub *streamSubscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *streamSubscription) signal() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- struct{}{}:
	default:
	}
}

func (sub *streamSubscription) fail(err error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.err = err
	close(sub.ch)
}

func (sub *streamSubscription) Close() {
	sub.cancel()
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

func filterToBSON(filters []docstore.Filter, prefix string) bson.M {
	out := bson.M{}
	for _, f := range filters {
		field := f.Field
		if field == docstore.FieldDocID {
			field = "_id"
		}
		field = prefix + field
		switch f.Op {
		case docstore.OpEq:
			out[field] = f.Value
		case docstore.OpLt:
			out[field] = bson.M{"$lt": f.Value}
		case docstore.OpIn:
			out[field] = bson.M{"$in": f.Value}
		}
	}
	return out
}

func docFromRaw(id string, raw bson.M) docstore.Doc {
	fields := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = normalizeValue(v)
	}
	return docstore.Doc{ID: id, Fields: fields}
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
