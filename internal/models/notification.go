package models

import "time"

// NotificationTemplate keys the fixed set of outcome messages.
type NotificationTemplate string

const (
	TemplateApproved         NotificationTemplate = "approved"
	TemplateChangesRequested NotificationTemplate = "changes_requested"
	TemplateRejected         NotificationTemplate = "rejected"
	TemplateUpgradeApproved  NotificationTemplate = "upgrade_approved"
	TemplateUpgradeDenied    NotificationTemplate = "upgrade_denied"
)

// Notification is an in-app message delivered to a submitter.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"userId"`
	Template  NotificationTemplate `db:"template" json:"template"`
	Subject   string               `db:"subject" json:"subject"`
	Body      string               `db:"body" json:"body"`
	Read      bool                 `db:"read" json:"read"`
	CreatedAt time.Time            `db:"created_at" json:"createdAt"`
}
