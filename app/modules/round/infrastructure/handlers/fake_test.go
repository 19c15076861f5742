package roundhandlers

import (
	"context"

	roundservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/application"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
)

// ------------------------
// Fake Round Service
// ------------------------

type FakeService struct {
	trace []string

	StartGameFunc        func(ctx context.Context, code string, requesterID uuid.UUID) (*gametypes.RoundState, error)
	UploadOriginalFunc   func(ctx context.Context, roundID, playerID uuid.UUID, audio roundservice.Audio) (*roundservice.UploadResult, error)
	UploadReverseFunc    func(ctx context.Context, roundID, playerID uuid.UUID, audio roundservice.Audio) (*roundservice.UploadResult, error)
	SubmitGuessesFunc    func(ctx context.Context, roundID, playerID uuid.UUID, guesses []roundservice.GuessInput) (*roundservice.SubmitResult, error)
	TriggerScoringFunc   func(ctx context.Context, roundID, requesterID uuid.UUID) (*roundservice.ScoreResult, error)
	GetRoundStateFunc    func(ctx context.Context, code string) (*gametypes.RoundState, error)
	GetResultsFunc       func(ctx context.Context, roundID uuid.UUID) (*scoringservice.RoundResults, error)
	ResultsWorkbookFunc  func(ctx context.Context, roundID uuid.UUID) ([]byte, error)
	LeaderboardChartFunc func(ctx context.Context, roundID uuid.UUID) ([]byte, error)
	OpenAudioFunc        func(ctx context.Context, grant string) (*roundservice.AudioStream, error)
}

var _ roundservice.Service = (*FakeService)(nil)

func (f *FakeService) Trace() []string { return f.trace }

func (f *FakeService) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeService) StartGame(ctx context.Context, code string, requesterID uuid.UUID) (*gametypes.RoundState, error) {
	f.record("StartGame")
	if f.StartGameFunc != nil {
		return f.StartGameFunc(ctx, code, requesterID)
	}
	return &gametypes.RoundState{RoomCode: code, RoundNumber: 1, Phase: gametypes.PhaseOriginalsRecording}, nil
}

func (f *FakeService) UploadOriginal(ctx context.Context, roundID, playerID uuid.UUID, audio roundservice.Audio) (*roundservice.UploadResult, error) {
	f.record("UploadOriginal")
	if f.UploadOriginalFunc != nil {
		return f.UploadOriginalFunc(ctx, roundID, playerID, audio)
	}
	return &roundservice.UploadResult{RoundID: roundID, UploadedCount: 1, TotalPlayers: 3}, nil
}

func (f *FakeService) UploadReverse(ctx context.Context, roundID, playerID uuid.UUID, audio roundservice.Audio) (*roundservice.UploadResult, error) {
	f.record("UploadReverse")
	if f.UploadReverseFunc != nil {
		return f.UploadReverseFunc(ctx, roundID, playerID, audio)
	}
	return &roundservice.UploadResult{RoundID: roundID, UploadedCount: 1, TotalPlayers: 3}, nil
}

func (f *FakeService) SubmitGuesses(ctx context.Context, roundID, playerID uuid.UUID, guesses []roundservice.GuessInput) (*roundservice.SubmitResult, error) {
	f.record("SubmitGuesses")
	if f.SubmitGuessesFunc != nil {
		return f.SubmitGuessesFunc(ctx, roundID, playerID, guesses)
	}
	return &roundservice.SubmitResult{Accepted: len(guesses)}, nil
}

func (f *FakeService) TriggerScoring(ctx context.Context, roundID, requesterID uuid.UUID) (*roundservice.ScoreResult, error) {
	f.record("TriggerScoring")
	if f.TriggerScoringFunc != nil {
		return f.TriggerScoringFunc(ctx, roundID, requesterID)
	}
	return &roundservice.ScoreResult{RoundID: roundID}, nil
}

func (f *FakeService) GetRoundState(ctx context.Context, code string) (*gametypes.RoundState, error) {
	f.record("GetRoundState")
	if f.GetRoundStateFunc != nil {
		return f.GetRoundStateFunc(ctx, code)
	}
	return &gametypes.RoundState{RoomCode: code}, nil
}

func (f *FakeService) GetAssignedSong(ctx context.Context, roundID, playerID uuid.UUID) (*roundservice.AssignedSong, error) {
	f.record("GetAssignedSong")
	return &roundservice.AssignedSong{Title: "Echoes"}, nil
}

func (f *FakeService) GetClues(ctx context.Context, roundID, playerID uuid.UUID) ([]roundservice.Clue, error) {
	f.record("GetClues")
	return []roundservice.Clue{{ClueIndex: 0}, {ClueIndex: 1}}, nil
}

func (f *FakeService) GetResults(ctx context.Context, roundID uuid.UUID) (*scoringservice.RoundResults, error) {
	f.record("GetResults")
	if f.GetResultsFunc != nil {
		return f.GetResultsFunc(ctx, roundID)
	}
	return &scoringservice.RoundResults{RoundID: roundID}, nil
}

func (f *FakeService) ResultsWorkbook(ctx context.Context, roundID uuid.UUID) ([]byte, error) {
	f.record("ResultsWorkbook")
	if f.ResultsWorkbookFunc != nil {
		return f.ResultsWorkbookFunc(ctx, roundID)
	}
	return []byte("PK"), nil
}

func (f *FakeService) LeaderboardChart(ctx context.Context, roundID uuid.UUID) ([]byte, error) {
	f.record("LeaderboardChart")
	if f.LeaderboardChartFunc != nil {
		return f.LeaderboardChartFunc(ctx, roundID)
	}
	return []byte("\x89PNG"), nil
}

func (f *FakeService) OpenAudio(ctx context.Context, grant string) (*roundservice.AudioStream, error) {
	f.record("OpenAudio")
	if f.OpenAudioFunc != nil {
		return f.OpenAudioFunc(ctx, grant)
	}
	return &roundservice.AudioStream{ContentType: "audio/webm", Data: []byte{1}}, nil
}

func (f *FakeService) RoomCodeForRound(ctx context.Context, roundID uuid.UUID) (string, error) {
	f.record("RoomCodeForRound")
	return "ROOM42", nil
}
