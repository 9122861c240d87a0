// Package domain defines the persistence models for submissions and
// forwarding attempts. These types are mapped with GORM and form the core
// data layer of the ingestion gateway.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Forwarding status values for a Submission. The status starts at pending
// (or not_attempted when no dashboard is configured) and moves exactly once
// to forwarded or failed; it never reverts.
const (
	ForwardingPending      = "pending"
	ForwardingForwarded    = "forwarded"
	ForwardingFailed       = "failed"
	ForwardingNotAttempted = "not_attempted"
)

// Submission represents one accepted form submission: the authoritative
// local record created at acceptance, independent of whether the external
// dashboard ever confirms receipt.
//
// Fields:
//   - ID: stable UUID primary key, assigned at acceptance (char(36)).
//   - FormType: canonical form type (newsletter, contact_sales, ...).
//   - Payload: the normalized record serialized as JSON.
//   - PayloadHash: sha256 over the semantically significant normalized
//     fields (timestamps excluded); unique per form type so a repeated
//     logical submission cannot be inserted twice.
//   - ClientKey: optional client-supplied dedup/correlation key; unique per
//     form type when present (NULLs do not collide).
//   - ForwardingStatus: pending|forwarded|failed|not_attempted (see above).
//   - ExternalID: dashboard-assigned identifier, set on successful forward.
//   - ReceivedAt: acceptance timestamp (UTC).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Submission struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	FormType         string         `json:"form_type"         gorm:"type:varchar(32);not null;index:idx_form_received,priority:1;uniqueIndex:ux_form_payload,priority:1;uniqueIndex:ux_form_client,priority:1"`
	Payload          string         `json:"payload"           gorm:"type:text;not null"`
	PayloadHash      string         `json:"-"                 gorm:"type:char(64);not null;uniqueIndex:ux_form_payload,priority:2;index:idx_payload_hash"`
	ClientKey        *string        `json:"client_key,omitempty" gorm:"type:varchar(200);uniqueIndex:ux_form_client,priority:2"`
	ForwardingStatus string         `json:"forwarding_status" gorm:"type:varchar(16);not null;default:'pending';check:forwarding_status IN ('pending','forwarded','failed','not_attempted')"`
	ExternalID       *string        `json:"external_id,omitempty" gorm:"type:varchar(128)"`
	ReceivedAt       time.Time      `json:"received_at"       gorm:"index:idx_form_received,priority:2"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// ForwardingAttempt records a single delivery attempt against the external
// dashboard. Attempts are diagnostic only; the last attempt determines the
// submission's ForwardingStatus.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SubmissionID: foreign key to the forwarded submission (indexed).
//   - AttemptNumber: 1-based attempt counter.
//   - Outcome: "success", "retryable" or "permanent".
//   - StatusCode: HTTP status returned by the dashboard, when any.
//   - Error: transport or classification error, when any.
//   - LatencyMS: wall-clock duration of the attempt in milliseconds.
type ForwardingAttempt struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	SubmissionID  string    `json:"submission_id"  gorm:"type:char(36);not null;index:idx_attempt_submission"`
	AttemptNumber int       `json:"attempt_number" gorm:"not null"`
	Outcome       string    `json:"outcome"        gorm:"type:varchar(16);not null;check:outcome IN ('success','retryable','permanent')"`
	StatusCode    *int      `json:"status_code,omitempty"`
	Error         *string   `json:"error,omitempty" gorm:"type:text"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`

	// Submission is the parent record. Attempts are cascade-deleted if the
	// submission is removed.
	Submission Submission `json:"-" gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ForwardingAttempt.
func (ForwardingAttempt) TableName() string { return "forwarding_attempts" }
