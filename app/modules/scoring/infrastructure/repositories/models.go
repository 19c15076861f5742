package scoringdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoundScore is one graded clue guess.
type RoundScore struct {
	bun.BaseModel `bun:"table:round_scores,alias:rs"`
	RoundID       uuid.UUID `bun:"round_id,pk,type:uuid"`
	PlayerID      uuid.UUID `bun:"player_id,pk,type:uuid"`
	ClueIndex     int       `bun:"clue_index,pk"`
	AIScore       float64   `bun:"ai_score,notnull"`
	BasePoints    int       `bun:"base_points,notnull"`
	SpeedBonus    int       `bun:"speed_bonus,notnull"`
	ArtistBonus   int       `bun:"artist_bonus,notnull"`
	TotalPoints   int       `bun:"total_points,notnull"`
	UsedFallback  bool      `bun:"used_fallback,notnull"`
	Reasoning     string    `bun:"reasoning,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
