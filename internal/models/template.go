package models

import (
	"fmt"
	"time"
)

// Template is a content source consumed by the scheduler. Ownership lives
// with the content tooling; the scheduler only reads it.
type Template struct {
	ID             string        `bson:"_id" json:"id"`
	Name           string        `bson:"name" json:"name"`
	TextVariants   []TextVariant `bson:"text_variants" json:"text_variants"`
	MinMedia       int           `bson:"min_media" json:"min_media"`
	MaxMedia       int           `bson:"max_media" json:"max_media"`
	MediaBundleIDs []string      `bson:"media_bundle_ids" json:"media_bundle_ids"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

type TextVariant struct {
	ID           string   `bson:"id" json:"id"`
	Content      string   `bson:"content" json:"content"`
	Placeholders []string `bson:"placeholders" json:"placeholders"`
}

// SupportedPlaceholders are the substitution keys the posting pipeline can
// fill in at execution time.
var SupportedPlaceholders = map[string]bool{
	"group_name":   true,
	"account_name": true,
	"date":         true,
	"city":         true,
	"link":         true,
}

// Validate checks structural template invariants before scheduling.
func (t *Template) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Message: "template id is required"}
	}
	if len(t.TextVariants) == 0 {
		return &ValidationError{Field: "text_variants", Message: "at least one text variant is required"}
	}
	if t.MinMedia > t.MaxMedia {
		return &ValidationError{
			Field:   "min_media",
			Message: fmt.Sprintf("min_media %d exceeds max_media %d", t.MinMedia, t.MaxMedia),
		}
	}
	if t.MinMedia < 0 {
		return &ValidationError{Field: "min_media", Message: "min_media must not be negative"}
	}
	if t.MaxMedia > len(t.MediaBundleIDs) {
		return &ValidationError{
			Field:   "max_media",
			Message: fmt.Sprintf("max_media %d exceeds available media bundles %d", t.MaxMedia, len(t.MediaBundleIDs)),
		}
	}
	for _, v := range t.TextVariants {
		for _, p := range v.Placeholders {
			if !SupportedPlaceholders[p] {
				return &ValidationError{
					Field:   "placeholders",
					Message: fmt.Sprintf("variant %s uses unsupported placeholder %q", v.ID, p),
				}
			}
		}
	}
	return nil
}
