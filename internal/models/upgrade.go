package models

import "time"

// UpgradeStatus captures workflow states for role upgrade requests.
type UpgradeStatus string

const (
	UpgradeStatusPending  UpgradeStatus = "PENDING"
	UpgradeStatusApproved UpgradeStatus = "APPROVED"
	UpgradeStatusDenied   UpgradeStatus = "DENIED"
)

// UpgradeRequest records a member's request to become an artist or an
// organization, optionally bundling a draft profile submission that is
// published when the request is approved.
type UpgradeRequest struct {
	ID           string        `db:"id" json:"id"`
	UserID       string        `db:"user_id" json:"userId"`
	TargetRole   UserRole      `db:"target_role" json:"targetRole"`
	DraftID      *string       `db:"draft_id" json:"draftId,omitempty"`
	Status       UpgradeStatus `db:"status" json:"status"`
	Reason       *string       `db:"reason" json:"reason,omitempty"`
	RequestedAt  time.Time     `db:"requested_at" json:"requestedAt"`
	DecidedBy    *string       `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt    *time.Time    `db:"decided_at" json:"decidedAt,omitempty"`
}

// UpgradeFilter constrains upgrade request listings.
type UpgradeFilter struct {
	UserID     string
	TargetRole UserRole
	Status     []UpgradeStatus
	Limit      int
	Offset     int
}
