package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostingTask is one scheduled unit of work: post a content combination
// into a group from an account at a given time. Created exclusively by the
// atomic claim.
type PostingTask struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccountID     string             `bson:"account_id" json:"account_id"`
	GroupID       string             `bson:"group_id" json:"group_id"`
	TemplateID    string             `bson:"template_id" json:"template_id"`
	TextVariantID string             `bson:"text_variant_id" json:"text_variant_id"`
	MediaIDs      []string           `bson:"media_ids" json:"media_ids"`
	ScheduledAt   time.Time          `bson:"scheduled_at" json:"scheduled_at"`
	Status        string             `bson:"status" json:"status"`
	RunID         string             `bson:"run_id,omitempty" json:"run_id,omitempty"`
	LastError     string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

type TaskFilter struct {
	AccountID  string
	GroupID    string
	TemplateID string
	Status     string
	RunID      string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Candidate is a proposed (account, group, time) tuple produced by the slot
// generator. It carries no content yet; the atomic claim selects that.
type Candidate struct {
	AccountID   string    `json:"account_id"`
	GroupID     string    `json:"group_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// ScheduleResult is the structured outcome of a schedule run. Constraint
// violations never fail the batch; they land in Warnings and Stats.
type ScheduleResult struct {
	RunID    string         `json:"run_id"`
	Tasks    []*PostingTask `json:"tasks"`
	Warnings []string       `json:"warnings"`
	Stats    ScheduleStats  `json:"stats"`
}

type ScheduleStats struct {
	CandidatesProposed int            `json:"candidates_proposed"`
	TasksCreated       int            `json:"tasks_created"`
	Skipped            map[string]int `json:"skipped"`
	Conflicts          int            `json:"conflicts"`
	NotAttempted       int            `json:"not_attempted"`
}
