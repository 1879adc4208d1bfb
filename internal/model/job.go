// Package model defines the core data types for the article service.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a batch job.
// Go doesn't have enums — we use typed constants with explicit values.
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusProcessing          JobStatus = "processing"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// Terminal reports whether the status is final. A terminal job is never
// claimed or mutated again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	default:
		return false
	}
}

// LengthClass selects a target article length; it also drives cost estimation.
type LengthClass string

const (
	LengthShort  LengthClass = "short"
	LengthMedium LengthClass = "medium"
	LengthLong   LengthClass = "long"
)

// ValidLength checks if a string is a valid LengthClass.
func ValidLength(s string) bool {
	switch LengthClass(s) {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// OutlineOption controls whether generation follows a caller-supplied outline.
type OutlineOption string

const (
	OutlineNone   OutlineOption = "none"
	OutlineCustom OutlineOption = "custom"
)

// GenerationSettings is the per-job (and per-stream-request) option bag.
// Stored as a JSON column on the job row — it travels as one unit and the
// pipeline never queries individual fields in SQL.
type GenerationSettings struct {
	Model            string        `json:"model"`
	Language         string        `json:"language"`
	Tone             string        `json:"tone"`
	Length           LengthClass   `json:"length"`
	OutlineOption    OutlineOption `json:"outlineOption"`
	CustomOutline    string        `json:"customOutline,omitempty"`
	AutoInsertImages bool          `json:"autoInsertImages"`
	MaxImages        int           `json:"maxImages"`
	WebsiteID        *int64        `json:"websiteId,omitempty"`
	UseGoogleSearch  bool          `json:"useGoogleSearch"`
}

// Value implements driver.Valuer so sqlx can write the struct as JSON text.
func (g GenerationSettings) Value() (driver.Value, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshaling settings: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON column back.
func (g *GenerationSettings) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	case nil:
		*g = GenerationSettings{}
		return nil
	default:
		return fmt.Errorf("scanning settings: unsupported type %T", src)
	}
}

// StringList is a []string stored as a JSON array column.
// Used for job keywords and the produced article id list.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = StringList{}
		return nil
	default:
		return fmt.Errorf("scanning string list: unsupported type %T", src)
	}
}

// Job is a queued unit of batch article generation covering one or more
// keywords. A job is owned exclusively by the worker that claims it: the
// pending → processing transition acts as a lease.
type Job struct {
	ID             int64              `db:"id" json:"id"`
	AccountID      string             `db:"account_id" json:"account_id"`
	Keywords       StringList         `db:"keywords" json:"keywords"`
	Settings       GenerationSettings `db:"settings" json:"settings"`
	Status         JobStatus          `db:"status" json:"status"`
	TotalItems     int                `db:"total_items" json:"total_items"`
	CompletedItems int                `db:"completed_items" json:"completed_items"`
	FailedItems    int                `db:"failed_items" json:"failed_items"`
	TokensUsed     int64              `db:"tokens_used" json:"tokens_used"`
	ArticleIDs     StringList         `db:"article_ids" json:"article_ids"`
	ErrorLog       *string            `db:"error_log" json:"error_log,omitempty"`

	// Budget snapshot at admission — informational only; the authoritative
	// balance is re-read at debit time.
	SnapshotTokens   int64 `db:"snapshot_tokens" json:"snapshot_tokens"`
	SnapshotArticles int64 `db:"snapshot_articles" json:"snapshot_articles"`

	ClaimedAt *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
