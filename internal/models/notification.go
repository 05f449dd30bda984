package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is an advisory flag for operator review. Notifications never
// block scheduling.
type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type       string             `bson:"type" json:"type"`
	TemplateID string             `bson:"template_id,omitempty" json:"template_id,omitempty"`
	GroupID    string             `bson:"group_id,omitempty" json:"group_id,omitempty"`
	Message    string             `bson:"message" json:"message"`
	UsageCount int                `bson:"usage_count,omitempty" json:"usage_count,omitempty"`
	Threshold  int                `bson:"threshold,omitempty" json:"threshold,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

const (
	NotificationGroupOveruse  = "group_overuse"
	NotificationGlobalOveruse = "global_overuse"
	NotificationStaleTemplate = "stale_template"
	NotificationStuckTasks    = "stuck_tasks"
)
