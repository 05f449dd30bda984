package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.Template, error)
	ListAll(ctx context.Context) ([]*models.Template, error)
	Upsert(ctx context.Context, template *models.Template) error
}

type templateRepository struct {
	collection *mongo.Collection
}

func NewTemplateRepository(db *database.MongoDB) TemplateRepository {
	return &templateRepository{
		collection: db.Collection("templates"),
	}
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &template, nil
}

func (r *templateRepository) ListAll(ctx context.Context) ([]*models.Template, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer cursor.Close(ctx)

	var templates []*models.Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}

	return templates, nil
}

func (r *templateRepository) Upsert(ctx context.Context, template *models.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}

	now := time.Now()
	template.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"name":             template.Name,
			"text_variants":    template.TextVariants,
			"min_media":        template.MinMedia,
			"max_media":        template.MaxMedia,
			"media_bundle_ids": template.MediaBundleIDs,
			"updated_at":       now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": template.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert template: %w", err)
	}

	return nil
}
