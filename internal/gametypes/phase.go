package gametypes

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the state of a round.
type Phase string

const (
	PhaseOriginalsRecording     Phase = "originals_recording"
	PhaseOriginalsReversedReady Phase = "originals_reversed_ready"
	PhaseReversedRecording      Phase = "reversed_recording"
	PhaseFinalAudioReady        Phase = "final_audio_ready"
	PhaseGuessing               Phase = "guessing"
	PhaseScoresFetching         Phase = "scores_fetching"
	PhaseRoundEnded             Phase = "round_ended"
)

var phaseOrder = []Phase{
	PhaseOriginalsRecording,
	PhaseOriginalsReversedReady,
	PhaseReversedRecording,
	PhaseFinalAudioReady,
	PhaseGuessing,
	PhaseScoresFetching,
	PhaseRoundEnded,
}

// Rank is the position of p in the phase order, or -1 for unknown phases.
func (p Phase) Rank() int {
	for i, q := range phaseOrder {
		if p == q {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool { return p.Rank() >= 0 }

// Precedes reports whether p comes strictly before q.
func (p Phase) Precedes(q Phase) bool {
	return p.Valid() && q.Valid() && p.Rank() < q.Rank()
}

// TrackStatus is the per-player sub-state inside a round.
type TrackStatus string

const (
	TrackOriginalsRecording     TrackStatus = "originals_recording"
	TrackOriginalsReversedReady TrackStatus = "originals_reversed_ready"
	TrackReversedRecording      TrackStatus = "reversed_recording"
	TrackFinalAudioReady        TrackStatus = "final_audio_ready"
)

var trackOrder = []TrackStatus{
	TrackOriginalsRecording,
	TrackOriginalsReversedReady,
	TrackReversedRecording,
	TrackFinalAudioReady,
}

// Rank is the position of s in the track status order, or -1.
func (s TrackStatus) Rank() int {
	for i, q := range trackOrder {
		if s == q {
			return i
		}
	}
	return -1
}

// RoundState is the cached, rebuildable view of a room's current round.
type RoundState struct {
	RoundID           uuid.UUID              `json:"roundId"`
	RoomCode          string                 `json:"roomCode"`
	RoundNumber       int                    `json:"roundNumber"`
	Phase             Phase                  `json:"phase"`
	Assignments       map[string]uuid.UUID   `json:"assignments"`
	ReverseSingers    map[string]uuid.UUID   `json:"reverseSingers,omitempty"`
	Tracks            map[string]TrackStatus `json:"tracks"`
	GuessingStartedAt *time.Time             `json:"guessingStartedAt,omitempty"`
	StartedAt         time.Time              `json:"startedAt"`
}
