// Package gametypes holds the types shared between the room, round,
// scoring and notifier modules.
package gametypes

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoomCodeLength is the length of every room code.
const RoomCodeLength = 6

// RoomCodeAlphabet is the set of characters room codes are drawn from.
const RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NormalizeRoomCode upper-cases and trims s and reports whether the result is
// a well-formed room code.
func NormalizeRoomCode(s string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(s))
	return code, roomCodePattern.MatchString(code)
}

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusEnded   RoomStatus = "ended"
)

// CanTransitionTo reports whether a room may move from s to next. Status only
// ever moves forward.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	switch s {
	case RoomStatusWaiting:
		return next == RoomStatusPlaying || next == RoomStatusEnded
	case RoomStatusPlaying:
		return next == RoomStatusEnded
	default:
		return false
	}
}

// Player is a room member.
type Player struct {
	ID          uuid.UUID `json:"id"`
	RoomCode    string    `json:"roomCode"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Room is the authoritative view of a room and its present players in join
// order. Version counts committed changes to the room row or its roster.
type Room struct {
	Code         string     `json:"code"`
	HostPlayerID *uuid.UUID `json:"hostPlayerId"`
	Status       RoomStatus `json:"status"`
	Players      []Player   `json:"players"`
	CreatedAt    time.Time  `json:"createdAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Version      int64      `json:"version"`
}

// Player returns the present player with id.
func (r *Room) Player(id uuid.UUID) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HasPlayer reports whether id is a present player of the room.
func (r *Room) HasPlayer(id uuid.UUID) bool {
	_, ok := r.Player(id)
	return ok
}

// IsHost reports whether id currently holds the host slot.
func (r *Room) IsHost(id uuid.UUID) bool {
	return r.HostPlayerID != nil && *r.HostPlayerID == id
}

// JoinOrder maps each present player to its position in the roster.
func (r *Room) JoinOrder() map[uuid.UUID]int {
	order := make(map[uuid.UUID]int, len(r.Players))
	for i, p := range r.Players {
		order[p.ID] = i
	}
	return order
}

// LeaderboardEntry is one line of a round leaderboard.
type LeaderboardEntry struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	TotalScore  int       `json:"totalScore"`
	SingerBonus int       `json:"singerBonus"`
}
