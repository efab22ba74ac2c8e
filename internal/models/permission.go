package models

// Permission is a grant tag checked by the auth gate.
type Permission string

const (
	PermWorldView      Permission = "world:view"
	PermWorldUpdate    Permission = "world:update"
	PermRoomUpdate     Permission = "room:update"
	PermRoomChatSend   Permission = "room:chat.send"
	PermRoomPollRead   Permission = "room:poll.read"
	PermRoomPollVote   Permission = "room:poll.vote"
	PermRoomPollManage Permission = "room:poll.manage"
)

// PermissionSet is an unordered set of permission tags.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given tags.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// PermissionSetFromStrings builds a set from raw tags as stored in the database.
func PermissionSetFromStrings(raw []string) PermissionSet {
	s := make(PermissionSet, len(raw))
	for _, p := range raw {
		s[Permission(p)] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Intersects reports whether any of perms is in the set.
func (s PermissionSet) Intersects(perms []Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}
