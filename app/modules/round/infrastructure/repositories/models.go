package rounddb

import (
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Song is a seeded song players are asked to sing.
type Song struct {
	bun.BaseModel   `bun:"table:songs,alias:s"`
	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Title           string    `bun:"title,notnull" json:"title"`
	Artist          string    `bun:"artist,notnull" json:"artist"`
	Lyrics          string    `bun:"lyrics,notnull" json:"lyrics"`
	DurationSeconds int       `bun:"duration_seconds,notnull" json:"duration_seconds"`
	AudioKey        string    `bun:"audio_key,notnull" json:"audio_key"`
	AudioType       string    `bun:"audio_type,notnull" json:"audio_type"`
}

// Round is the durable round row.
type Round struct {
	bun.BaseModel     `bun:"table:rounds,alias:rd"`
	ID                uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	RoomCode          string          `bun:"room_code,notnull" json:"room_code"`
	RoundNumber       int             `bun:"round_number,notnull" json:"round_number"`
	Phase             gametypes.Phase `bun:"phase,notnull" json:"phase"`
	StartedAt         time.Time       `bun:"started_at,notnull,default:current_timestamp" json:"started_at"`
	GuessingStartedAt *time.Time      `bun:"guessing_started_at" json:"guessing_started_at,omitempty"`
	EndedAt           *time.Time      `bun:"ended_at" json:"ended_at,omitempty"`
}

// Track is one player's slot in a round: the song they perform and the
// artifacts produced from it. PerformerName and SingerName are filled by
// ListTracks only.
type Track struct {
	bun.BaseModel         `bun:"table:round_tracks,alias:t"`
	RoundID               uuid.UUID             `bun:"round_id,pk,type:uuid" json:"round_id"`
	PlayerID              uuid.UUID             `bun:"player_id,pk,type:uuid" json:"player_id"`
	SongID                uuid.UUID             `bun:"song_id,notnull,type:uuid" json:"song_id"`
	OriginalAudioKey      string                `bun:"original_audio_key,nullzero" json:"original_audio_key,omitempty"`
	ReversedAudioKey      string                `bun:"reversed_audio_key,nullzero" json:"reversed_audio_key,omitempty"`
	ReverseRecordingKey   string                `bun:"reverse_recording_key,nullzero" json:"reverse_recording_key,omitempty"`
	FinalAudioKey         string                `bun:"final_audio_key,nullzero" json:"final_audio_key,omitempty"`
	ReverseSingerPlayerID *uuid.UUID            `bun:"reverse_singer_player_id,type:uuid" json:"reverse_singer_player_id,omitempty"`
	Status                gametypes.TrackStatus `bun:"status,notnull" json:"status"`
	UpdatedAt             time.Time             `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	PerformerName string `bun:"performer_name,scanonly" json:"performer_name,omitempty"`
	SingerName    string `bun:"singer_name,scanonly" json:"singer_name,omitempty"`
}

// TrackKeys are the object keys written alongside a status change. Empty
// keys leave the column untouched.
type TrackKeys struct {
	Original         string
	Reversed         string
	ReverseRecording string
	Final            string
}

// Guess is one submitted guess on one clue.
type Guess struct {
	bun.BaseModel `bun:"table:round_guesses,alias:g"`
	RoundID       uuid.UUID `bun:"round_id,pk,type:uuid" json:"round_id"`
	PlayerID      uuid.UUID `bun:"player_id,pk,type:uuid" json:"player_id"`
	ClueIndex     int       `bun:"clue_index,pk" json:"clue_index"`
	TitleGuess    string    `bun:"title_guess,notnull" json:"title_guess"`
	ArtistGuess   string    `bun:"artist_guess,notnull" json:"artist_guess"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull,default:current_timestamp" json:"submitted_at"`
}

// State builds the cached round view from a round row and its tracks.
func State(round *Round, tracks []Track) *gametypes.RoundState {
	state := &gametypes.RoundState{
		RoundID:           round.ID,
		RoomCode:          round.RoomCode,
		RoundNumber:       round.RoundNumber,
		Phase:             round.Phase,
		Assignments:       make(map[string]uuid.UUID, len(tracks)),
		Tracks:            make(map[string]gametypes.TrackStatus, len(tracks)),
		GuessingStartedAt: round.GuessingStartedAt,
		StartedAt:         round.StartedAt,
	}
	for _, t := range tracks {
		key := t.PlayerID.String()
		state.Assignments[key] = t.SongID
		state.Tracks[key] = t.Status
		if t.ReverseSingerPlayerID != nil {
			if state.ReverseSingers == nil {
				state.ReverseSingers = make(map[string]uuid.UUID, len(tracks))
			}
			state.ReverseSingers[key] = *t.ReverseSingerPlayerID
		}
	}
	return state
}
