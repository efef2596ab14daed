package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"allowance/internal/kv"
	"allowance/internal/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// recordDocument is the shape of one user record in MongoDB.
type recordDocument struct {
	Username  string `bson:"_id"`
	Data      string `bson:"data"`
	UpdatedAt int64  `bson:"updatedAt"`
}

// MongoStore keeps user records in a MongoDB collection, one document per username.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, dbName, collName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.InfoContext(ctx, "Connected to MongoDB", log.FieldComponent, log.ComponentStorage, "database", dbName, "collection", collName)
	return &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collName),
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc recordDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user record %q: %w", key, err)
	}
	return []byte(doc.Data), nil
}

func (s *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{"$set": bson.M{
		"data":      string(value),
		"updatedAt": time.Now().Unix(),
	}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user record %q: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
