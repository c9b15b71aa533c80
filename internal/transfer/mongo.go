package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kadirbelkuyu/docbridge/internal/config"
	"github.com/kadirbelkuyu/docbridge/internal/document"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoBatchSize = 500

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.GetMongoURI()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func disconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// MongoSource offers every collection of a MongoDB database as an import
// entry named after the collection.
type MongoSource struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoSource(ctx context.Context, cfg *config.Config) (*MongoSource, error) {
	if cfg.Mongo.Database == "" {
		return nil, fmt.Errorf("mongo.database is required to import from MongoDB")
	}
	client, err := connectMongo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MongoSource{client: client, db: client.Database(cfg.Mongo.Database)}, nil
}

func (s *MongoSource) Walk(ctx context.Context, fn func(Entry) error) error {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		collection := s.db.Collection(name)

		total, err := collection.EstimatedDocumentCount(ctx)
		if err != nil {
			total = -1
		}

		entry := Entry{
			Name:   name,
			Origin: fmt.Sprintf("%s.%s", s.db.Name(), name),
			Total:  total,
			Open: func(ctx context.Context) (DocumentReader, error) {
				cursor, err := collection.Find(ctx, bson.D{}, options.Find().SetBatchSize(mongoBatchSize))
				if err != nil {
					return nil, fmt.Errorf("failed to query collection %s: %w", collection.Name(), err)
				}
				return &mongoReader{ctx: ctx, cursor: cursor}, nil
			},
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoSource) Close() error {
	return disconnectMongo(s.client)
}

type mongoReader struct {
	ctx    context.Context
	cursor *mongo.Cursor
}

func (r *mongoReader) Next() (*document.Document, error) {
	if !r.cursor.Next(r.ctx) {
		if err := r.cursor.Err(); err != nil {
			return nil, fmt.Errorf("error reading documents: %w", err)
		}
		return nil, io.EOF
	}

	var raw bson.D
	if err := r.cursor.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return FromBSON(raw)
}

func (r *mongoReader) Close() error {
	return r.cursor.Close(r.ctx)
}

// FromBSON converts a MongoDB document through relaxed Extended JSON.
// ObjectIDs become their hex string and dates become RFC 3339 strings, the
// shapes a JSON dump of the same collection would carry.
func FromBSON(d bson.D) (*document.Document, error) {
	normalized, _ := normalizeBSON(d).(bson.D)
	data, err := bson.MarshalExtJSON(normalized, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}
	return document.Parse(data)
}

func normalizeBSON(value interface{}) interface{} {
	switch v := value.(type) {
	case bson.D:
		out := make(bson.D, len(v))
		for i, e := range v {
			out[i] = bson.E{Key: e.Key, Value: normalizeBSON(e.Value)}
		}
		return out
	case bson.M:
		out := make(bson.M, len(v))
		for k, e := range v {
			out[k] = normalizeBSON(e)
		}
		return out
	case bson.A:
		out := make(bson.A, len(v))
		for i, e := range v {
			out[i] = normalizeBSON(e)
		}
		return out
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		return value
	}
}

// ToBSON is the inverse of FromBSON for documents produced by an export.
func ToBSON(doc *document.Document) (bson.D, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("failed to convert document to BSON: %w", err)
	}
	return d, nil
}

// MongoSink upserts exported documents by _id, so exporting twice leaves one
// copy of each document. Writes are not transactional: a failed export may
// leave earlier batches in place.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
	infos  []*mongoWriter
}

func NewMongoSink(ctx context.Context, cfg *config.Config) (*MongoSink, error) {
	if cfg.Mongo.Database == "" {
		return nil, fmt.Errorf("mongo.database is required to export to MongoDB")
	}
	client, err := connectMongo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MongoSink{client: client, db: client.Database(cfg.Mongo.Database)}, nil
}

func (s *MongoSink) Create(ctx context.Context, collection string) (DocumentWriter, error) {
	w := &mongoWriter{
		ctx:        ctx,
		collection: s.db.Collection(collection),
		batch:      make([]mongo.WriteModel, 0, mongoBatchSize),
	}
	s.infos = append(s.infos, w)
	return w, nil
}

func (s *MongoSink) Commit(context.Context) ([]CollectionInfo, error) {
	infos := make([]CollectionInfo, 0, len(s.infos))
	for _, w := range s.infos {
		if err := w.Close(); err != nil {
			return nil, err
		}
		infos = append(infos, CollectionInfo{
			Collection:  w.collection.Name(),
			Location:    fmt.Sprintf("%s.%s", s.db.Name(), w.collection.Name()),
			Documents:   w.count,
			CompletedAt: time.Now(),
		})
	}
	s.infos = nil
	return infos, nil
}

func (s *MongoSink) Abort() error {
	s.infos = nil
	return nil
}

func (s *MongoSink) Close() error {
	return disconnectMongo(s.client)
}

type mongoWriter struct {
	ctx        context.Context
	collection *mongo.Collection
	batch      []mongo.WriteModel
	count      int64
}

func (w *mongoWriter) Write(doc *document.Document) error {
	d, err := ToBSON(doc)
	if err != nil {
		return err
	}

	if id, ok := lookup(d, "_id"); ok {
		w.batch = append(w.batch, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetReplacement(d).
			SetUpsert(true))
	} else {
		w.batch = append(w.batch, mongo.NewInsertOneModel().SetDocument(d))
	}
	w.count++

	if len(w.batch) >= mongoBatchSize {
		return w.flush()
	}
	return nil
}

func (w *mongoWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	opts := options.BulkWrite().SetOrdered(false)
	if _, err := w.collection.BulkWrite(w.ctx, w.batch, opts); err != nil {
		return fmt.Errorf("failed to write batch into %s: %w", w.collection.Name(), err)
	}
	w.batch = w.batch[:0]
	return nil
}

func (w *mongoWriter) Close() error {
	return w.flush()
}

func lookup(d bson.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
