package service

import (
	"github.com/artsdesk/artsdesk-api/internal/models"
)

// canModerate reports whether the role may act on the moderation queue.
func canModerate(role models.UserRole) bool {
	for _, allowed := range models.ModerationRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

// canAccessSubmission allows moderators and the owning member through.
func canAccessSubmission(actor *models.JWTClaims, ownerID string) bool {
	if actor == nil {
		return false
	}
	if canModerate(actor.Role) {
		return true
	}
	return actor.UserID == ownerID
}

// upgradeTargetAllowed limits upgrade requests to the two directory roles.
func upgradeTargetAllowed(role models.UserRole) bool {
	return role == models.RoleArtist || role == models.RoleOrganization
}

// contentTypeForRole maps an upgrade target to its draft profile content type.
func contentTypeForRole(role models.UserRole) (models.ContentType, bool) {
	switch role {
	case models.RoleArtist:
		return models.ContentTypeArtist, true
	case models.RoleOrganization:
		return models.ContentTypeOrganization, true
	default:
		return "", false
	}
}
