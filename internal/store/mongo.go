package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userName is a document of the user_names collection.
type userName struct {
	UserID string `bson:"user_id"`
	Name   string `bson:"name"`
}

// MongoStore keeps display names in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("user_names")}
}

// EnsureIndexes makes user_id unique so SetName can upsert on it.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo index: %w", err)
	}
	return nil
}

func (s *MongoStore) GetName(ctx context.Context, userID string) (string, error) {
	var doc userName
	err := s.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mongo find name: %w", err)
	}
	return doc.Name, nil
}

func (s *MongoStore) SetName(ctx context.Context, userID, name string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": userName{UserID: userID, Name: name}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo set name: %w", err)
	}
	return nil
}
