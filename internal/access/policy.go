// Package access decides which principals may read or remove transactions.
package access

import "github.com/Dan9191/ledger-service/internal/models"

// Authorize reports whether p is active and holds one of roles.
func Authorize(p models.Principal, roles ...models.Role) bool {
	if !p.IsActive {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// CanView reports whether p may read t. Admins see everything; other
// principals only see transactions sent from an account they own. Recipients
// are not granted access.
func CanView(p models.Principal, t *models.Transaction) bool {
	if t == nil || !p.IsActive {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return t.Sender != nil && t.Sender.UserID == p.ID
}

// CanDelete reports whether p may remove t. It follows the view rule.
func CanDelete(p models.Principal, t *models.Transaction) bool {
	return CanView(p, t)
}
