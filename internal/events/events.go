// Package events defines the real-time event kinds pushed to room members
// and their payloads.
package events

import (
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
)

// Kind names a room event on the wire.
type Kind string

const (
	PlayerJoined             Kind = "player_joined"
	PlayerLeft               Kind = "player_left"
	RoomUpdated              Kind = "room_updated"
	GameStarted              Kind = "game_started"
	GameEnded                Kind = "game_ended"
	RoundPhaseChanged        Kind = "round_phase_changed"
	OriginalUploaded         Kind = "original_uploaded"
	ReversedRecordingStarted Kind = "reversed_recording_started"
	ReverseUploaded          Kind = "reverse_uploaded"
	GuessingStarted          Kind = "guessing_started"
	GuessProgress            Kind = "guess_progress"
	GuessingEnded            Kind = "guessing_ended"
	ScoresReady              Kind = "scores_ready"
	HostAudioSync            Kind = "host_audio_sync"
	HostSongChanged          Kind = "host_song_changed"
)

// Topic is the event bus topic every room event travels on.
const Topic = "room.events"

// Metadata keys set on bus messages.
const (
	MetadataRoomCode = "room_code"
	MetadataKind     = "event_kind"
)

// Envelope is the JSON frame delivered to websocket clients.
type Envelope struct {
	Kind      Kind      `json:"type"`
	RoomCode  string    `json:"roomCode"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emittedAt"`
}

// PlayerPayload accompanies player_joined and player_left.
type PlayerPayload struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName,omitempty"`
}

// RoomPayload accompanies room_updated and game_ended.
type RoomPayload struct {
	Room        gametypes.Room `json:"room"`
	Invalidated int            `json:"invalidated,omitempty"`
}

// PhasePayload accompanies game_started and round_phase_changed.
type PhasePayload struct {
	RoundID     uuid.UUID       `json:"roundId"`
	RoundNumber int             `json:"roundNumber"`
	Phase       gametypes.Phase `json:"phase"`
}

// UploadProgressPayload accompanies original_uploaded and reverse_uploaded.
type UploadProgressPayload struct {
	RoundID       uuid.UUID `json:"roundId"`
	PlayerID      uuid.UUID `json:"playerId"`
	UploadedCount int       `json:"uploadedCount"`
	TotalPlayers  int       `json:"totalPlayers"`
}

// ReverseAssignmentPayload accompanies reversed_recording_started. The map is
// keyed by the original performer and names the reverse singer.
type ReverseAssignmentPayload struct {
	RoundID    uuid.UUID            `json:"roundId"`
	ReverseMap map[string]uuid.UUID `json:"reverseMap"`
}

// GuessingPayload accompanies guessing_started.
type GuessingPayload struct {
	RoundID   uuid.UUID `json:"roundId"`
	StartedAt time.Time `json:"startedAt"`
	ClueCount int       `json:"clueCount"`
}

// GuessProgressPayload accompanies guess_progress and guessing_ended.
type GuessProgressPayload struct {
	RoundID        uuid.UUID `json:"roundId"`
	SubmittedCount int       `json:"submittedCount"`
	TotalPlayers   int       `json:"totalPlayers"`
}

// ScoresReadyPayload accompanies scores_ready.
type ScoresReadyPayload struct {
	RoundID     uuid.UUID                    `json:"roundId"`
	Leaderboard []gametypes.LeaderboardEntry `json:"leaderboard"`
}
