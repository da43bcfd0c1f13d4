package entity

import "slices"

// FriendStatus is the relationship between the session user and a counterpart.
type FriendStatus string

const (
	FriendNone     FriendStatus = "NONE"
	FriendSent     FriendStatus = "SENT"     // request pending, self -> counterpart
	FriendReceived FriendStatus = "RECEIVED" // request pending, counterpart -> self
	FriendFriend   FriendStatus = "FRIEND"
)

// FriendEdge is the single relationship edge per (self, counterpart) pair.
// Status and FriendshipID change together: any non-NONE status carries a
// backend friendship id, and a NONE edge is removed from the store instead
// of being kept around.
type FriendEdge struct {
	FriendshipID    int64
	CounterpartID   string
	CounterpartName string
	Status          FriendStatus
}

// validFriendTransitions defines allowed status changes for an edge whose
// friendship id is unchanged. An incoming edge with a different friendship
// id is a new relationship and bypasses this table (last-observed-wins).
var validFriendTransitions = map[FriendStatus][]FriendStatus{
	FriendNone:     {FriendSent, FriendReceived, FriendFriend},
	FriendSent:     {FriendFriend, FriendNone},
	FriendReceived: {FriendFriend, FriendNone},
	FriendFriend:   {FriendNone},
}

// CanTransition reports whether a friend edge may move from one status to
// another under the same friendship id.
func CanTransition(from, to FriendStatus) bool {
	return slices.Contains(validFriendTransitions[from], to)
}
