package models

import "time"

// ModerationActionKind constants represent transitions to be audited.
const (
	ModerationActionApprove        = "APPROVE"
	ModerationActionDeny           = "DENY"
	ModerationActionBulkApprove    = "BULK_APPROVE"
	ModerationActionBulkDeny       = "BULK_DENY"
	ModerationActionWithdraw       = "WITHDRAW"
	ModerationActionUpgradeApprove = "UPGRADE_APPROVE"
	ModerationActionUpgradeDeny    = "UPGRADE_DENY"
)

// ModerationAction is an append-only audit record of one status transition.
// Rows are inserted once and never updated or deleted.
type ModerationAction struct {
	ID           string    `db:"id" json:"id"`
	SubmissionID string    `db:"submission_id" json:"submissionId"`
	ActorID      string    `db:"actor_id" json:"actorId"`
	Kind         string    `db:"kind" json:"kind"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// ModerationActionFilter constrains audit listing queries.
type ModerationActionFilter struct {
	SubmissionID string
	ActorID      string
	Kind         string
	Limit        int
	Offset       int
}

// ModerationResult reports the outcome of a bulk transition request.
type ModerationResult struct {
	Processed int      `json:"processed"`
	Skipped   []string `json:"skipped,omitempty"`
}
