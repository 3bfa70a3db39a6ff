package dto

import "github.com/artsdesk/artsdesk-api/internal/models"

// CreateUpgradeRequest asks for a role upgrade, optionally with a draft profile.
type CreateUpgradeRequest struct {
	TargetRole models.UserRole   `json:"targetRole"`
	Profile    map[string]string `json:"profile,omitempty"`
}

// DenyUpgradeRequest carries the mandatory moderator reason.
type DenyUpgradeRequest struct {
	Reason string `json:"reason"`
}
