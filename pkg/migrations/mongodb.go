package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureKnowledgeIndexes creates the indexes the knowledge loader and the
// seed command rely on. The collection itself is created on first insert.
func EnsureKnowledgeIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_knowledge_category"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "question", Value: 1}},
			Options: options.Index().SetName("idx_knowledge_category_question").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "keywords", Value: 1}},
			Options: options.Index().SetName("idx_knowledge_keywords"),
		},
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}
	return nil
}
