package live

import (
	"strconv"
	"strings"
)

// Client to server messages.
const (
	MsgJoinRoom  = "join-room"
	MsgLeaveRoom = "leave-room"
)

// Server to client events.
const (
	// EventRoleUpdated is sent to user-<id> when the user's roles change.
	EventRoleUpdated = "ROLE_UPDATED"
	// EventRefreshLeaderboard is sent to event-<id> when quiz scores move.
	EventRefreshLeaderboard = "REFRESH_LEADERBOARD"
)

// Room kinds.
const (
	RoomUser  = "user"
	RoomEvent = "event"
)

// KnownEvent reports whether name belongs to the protocol.
func KnownEvent(name string) bool {
	return name == EventRoleUpdated || name == EventRefreshLeaderboard
}

// UserRoom is the personal room of a user. Unknown ids yield "".
func UserRoom(id int64) string { return roomName(RoomUser, id) }

// EventRoom is the room of one event. Unknown ids yield "".
func EventRoom(id int64) string { return roomName(RoomEvent, id) }

func roomName(kind string, id int64) string {
	if id <= 0 {
		return ""
	}
	return kind + "-" + strconv.FormatInt(id, 10)
}

// ParseRoom splits "user-42" into ("user", 42).
func ParseRoom(name string) (kind string, id int64, ok bool) {
	kind, num, found := strings.Cut(name, "-")
	if !found || (kind != RoomUser && kind != RoomEvent) {
		return "", 0, false
	}
	id, err := strconv.ParseInt(num, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return kind, id, true
}
