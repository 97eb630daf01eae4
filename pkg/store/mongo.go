package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store backend for hosted deployments.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	Key      string    `bson:"_id"`
	Value    []byte    `bson:"value"`
	StoredAt time.Time `bson:"stored_at"`
}

// OpenMongo connects to uri and uses the kv_cache collection of database db.
func OpenMongo(ctx context.Context, uri, db string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(db).Collection("kv_cache"),
	}, nil
}

// Initialize verifies connectivity; collections are created lazily.
func (m *Mongo) Initialize(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Get(ctx context.Context, key string) (Entry, bool, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: doc.Value, StoredAt: doc.StoredAt}, true, nil
}

func (m *Mongo) Put(ctx context.Context, key string, value []byte) error {
	doc := mongoDoc{Key: key, Value: value, StoredAt: time.Now()}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc,
		options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) Invalidate(ctx context.Context, prefix string) error {
	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	_, err := m.coll.DeleteMany(ctx, bson.M{"_id": pattern})
	return err
}

// Close disconnects from the server.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

var _ Store = (*Mongo)(nil)
