package models

import "github.com/google/uuid"

// Principal is the authenticated actor of a single request.
// It is resolved once by the auth gate and passed explicitly to every operation.
type Principal struct {
	UserID          uuid.UUID
	WorldID         uuid.UUID
	Permissions     PermissionSet
	RoomPermissions map[uuid.UUID]PermissionSet
}

// HasRoomPermission reports whether p is granted world-wide or in the given room.
func (pr *Principal) HasRoomPermission(room uuid.UUID, p Permission) bool {
	if pr.Permissions.Has(p) {
		return true
	}
	return pr.RoomPermissions[room].Has(p)
}
