package roundservice

import (
	"context"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service runs the round lifecycle.
type Service interface {
	StartGame(ctx context.Context, code string, requesterID uuid.UUID) (*gametypes.RoundState, error)
	UploadOriginal(ctx context.Context, roundID, playerID uuid.UUID, audio Audio) (*UploadResult, error)
	UploadReverse(ctx context.Context, roundID, playerID uuid.UUID, audio Audio) (*UploadResult, error)
	SubmitGuesses(ctx context.Context, roundID, playerID uuid.UUID, guesses []GuessInput) (*SubmitResult, error)
	TriggerScoring(ctx context.Context, roundID, requesterID uuid.UUID) (*ScoreResult, error)

	// GetRoundState serves the room's current round from cache and rebuilds
	// it from durable rows on a miss.
	GetRoundState(ctx context.Context, code string) (*gametypes.RoundState, error)
	GetAssignedSong(ctx context.Context, roundID, playerID uuid.UUID) (*AssignedSong, error)
	GetClues(ctx context.Context, roundID, playerID uuid.UUID) ([]Clue, error)
	GetResults(ctx context.Context, roundID uuid.UUID) (*scoringservice.RoundResults, error)
	ResultsWorkbook(ctx context.Context, roundID uuid.UUID) ([]byte, error)
	LeaderboardChart(ctx context.Context, roundID uuid.UUID) ([]byte, error)

	// OpenAudio returns the artifact an audio grant unlocks.
	OpenAudio(ctx context.Context, grant string) (*AudioStream, error)

	// RoomCodeForRound lets identity check round tokens.
	RoomCodeForRound(ctx context.Context, roundID uuid.UUID) (string, error)
}

// Audio is an uploaded recording.
type Audio struct {
	ContentType string
	Data        []byte
}

// AudioStream is an artifact ready to serve.
type AudioStream struct {
	ContentType string
	Data        []byte
}

// UploadResult reports an accepted upload and the round's progress.
type UploadResult struct {
	RoundID       uuid.UUID       `json:"roundId"`
	Phase         gametypes.Phase `json:"phase"`
	UploadedCount int             `json:"uploadedCount"`
	TotalPlayers  int             `json:"totalPlayers"`
}

// GuessInput is one guess as submitted by a player.
type GuessInput struct {
	ClueIndex int    `json:"clueIndex"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
}

// SubmitResult reports an accepted guess sheet.
type SubmitResult struct {
	Accepted       int  `json:"accepted"`
	SubmittedCount int  `json:"submittedCount"`
	TotalPlayers   int  `json:"totalPlayers"`
	GuessingEnded  bool `json:"guessingEnded"`
}

// ScoreResult is returned once a round is scored.
type ScoreResult struct {
	RoundID       uuid.UUID                    `json:"roundId"`
	Leaderboard   []gametypes.LeaderboardEntry `json:"leaderboard"`
	FallbackCount int                          `json:"fallbackCount"`
}

// AssignedSong is what a player must sing, plus the reversed original they
// imitate once reverse singers are assigned.
type AssignedSong struct {
	SongID          uuid.UUID      `json:"songId"`
	Title           string         `json:"title"`
	Artist          string         `json:"artist"`
	Lyrics          string         `json:"lyrics"`
	DurationSeconds int            `json:"durationSeconds"`
	AudioURL        string         `json:"audioUrl"`
	ReverseTarget   *ReverseTarget `json:"reverseTarget,omitempty"`
}

// ReverseTarget is the reversed original a player has to imitate.
type ReverseTarget struct {
	PerformerID uuid.UUID `json:"performerId"`
	AudioURL    string    `json:"audioUrl"`
}

// Clue is one final audio to guess. Title and artist stay hidden.
type Clue struct {
	ClueIndex        int       `json:"clueIndex"`
	OriginalPlayerID uuid.UUID `json:"originalPlayerId"`
	SingerPlayerID   uuid.UUID `json:"singerPlayerId"`
	SingerName       string    `json:"singerName"`
	AudioURL         string    `json:"audioUrl"`
}

// RoomStore is the slice of the room repository a round needs.
type RoomStore interface {
	GetRoomForUpdate(ctx context.Context, db bun.IDB, code string) (*roomdb.Room, error)
	ListPresentPlayers(ctx context.Context, db bun.IDB, code string) ([]roomdb.Player, error)
	UpdateStatus(ctx context.Context, db bun.IDB, code string, from, to gametypes.RoomStatus, endedAt *time.Time) error
	BumpVersion(ctx context.Context, db bun.IDB, code string) (int64, error)
}

// RoomRefresher rebuilds the cached room view after a round changes the
// room's status.
type RoomRefresher interface {
	Refresh(ctx context.Context, code string) (*gametypes.Room, error)
}

// StateCache holds derived round state keyed by room code.
type StateCache interface {
	Get(ctx context.Context, roomCode string) (*gametypes.RoundState, error)
	Put(ctx context.Context, state *gametypes.RoundState) error
	Delete(ctx context.Context, roomCode string) error
}

// Notifier pushes room events to connected players.
type Notifier interface {
	Notify(ctx context.Context, roomCode string, kind events.Kind, payload any) error
}

// GrantIssuer signs and checks audio grants.
type GrantIssuer interface {
	IssueAudioGrant(ctx context.Context, grant identitydomain.AudioGrant) (string, error)
	ValidateAudioGrant(ctx context.Context, token string) (*identitydomain.AudioGrant, error)
}
