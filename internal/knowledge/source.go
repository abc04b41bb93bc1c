package knowledge

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

//go:embed data/*.json
var bundled embed.FS

// Source yields the knowledge entries once at startup.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// EmbeddedSource reads the datasets compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(_ context.Context) ([]Entry, error) {
	var entries []Entry
	for _, category := range Categories {
		raw, err := bundled.ReadFile(fmt.Sprintf("data/%s.json", category))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dataset: %w", category, err)
		}

		var ds dataset
		if err := json.Unmarshal(raw, &ds); err != nil {
			return nil, fmt.Errorf("failed to parse %s dataset: %w", category, err)
		}
		if ds.Category != category {
			return nil, fmt.Errorf("dataset %s declares category %q", category, ds.Category)
		}

		for _, e := range ds.Entries {
			e.Category = category
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type MongoSource struct {
	collection *mongo.Collection
}

func NewMongoSource(db *mongo.Database, collection string) *MongoSource {
	return &MongoSource{collection: db.Collection(collection)}
}

func (s *MongoSource) Load(ctx context.Context) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "question", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find knowledge entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge entries: %w", err)
	}
	return entries, nil
}

// Seed replaces the collection content with entries. Used by the admin
// seed-knowledge command.
func (s *MongoSource) Seed(ctx context.Context, entries []Entry) (int, error) {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return 0, fmt.Errorf("failed to clear knowledge entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert knowledge entries: %w", err)
	}
	return len(res.InsertedIDs), nil
}
