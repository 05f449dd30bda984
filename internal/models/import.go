package models

// ImportEntry is one row of an externally supplied group list.
type ImportEntry struct {
	FBGroupID string `json:"fb_group_id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name,omitempty"`
}

// Import classification results.
const (
	ImportAdded   = "added"
	ImportUpdated = "updated"
	ImportSkipped = "skipped"
	ImportError   = "error"
)

type ImportDetail struct {
	FBGroupID string `json:"fb_group_id"`
	AccountID string `json:"account_id"`
	Result    string `json:"result"`
	Reason    string `json:"reason,omitempty"`
}

type ImportResult struct {
	Added   int            `json:"added"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
	Details []ImportDetail `json:"details"`
}

// ImportPreview mirrors ImportResult for the dry run. SampleDetails holds at
// most the first 10 classifications.
type ImportPreview struct {
	WouldAdd      int            `json:"would_add"`
	WouldUpdate   int            `json:"would_update"`
	WouldSkip     int            `json:"would_skip"`
	Errors        int            `json:"errors"`
	SampleDetails []ImportDetail `json:"sample_details"`
}
