package roster

import "strings"

// CanEditCell decides whether the signed-in principal may open the cell of
// the row addressed by targetKey. Administrators edit anything; everyone else
// only their own row, matched by exact display key after trimming. A caller
// with no resolved agent profile passes an empty ownKey and edits nothing.
//
// This gate shapes the UI and avoids wasted round-trips; the store's own
// access rules remain the authoritative boundary.
func CanEditCell(isAdmin bool, ownKey, targetKey string) bool {
	if isAdmin {
		return true
	}
	own := strings.TrimSpace(ownKey)
	if own == "" {
		return false
	}
	return strings.TrimSpace(targetKey) == own
}
