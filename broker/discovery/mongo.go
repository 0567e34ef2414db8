package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const discoveryCollection = "discovery"

// MongoStore backs the discovery index with a mongo collection so the search
// service can aggregate over it.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(discoveryCollection)}
}

func (s *MongoStore) Get(ctx context.Context, identifier string) (*Entry, error) {
	var entry Entry
	err := s.coll.FindOne(ctx, bson.M{"identifier": identifier}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading discovery entry %v: %w", identifier, err)
	}
	return &entry, nil
}

func (s *MongoStore) Upsert(ctx context.Context, entry Entry) error {
	_, err := s.coll.ReplaceOne(
		ctx,
		bson.M{"identifier": entry.Identifier},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error upserting discovery entry %v: %w", entry.Identifier, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, identifier string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"identifier": identifier})
	if err != nil {
		return fmt.Errorf("error deleting discovery entry %v: %w", identifier, err)
	}
	return nil
}

func (s *MongoStore) Identifiers(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "identifier", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing discovery identifiers: %w", err)
	}

	identifiers := make([]string, 0, len(values))
	for _, value := range values {
		if identifier, ok := value.(string); ok {
			identifiers = append(identifiers, identifier)
		}
	}
	return identifiers, nil
}
