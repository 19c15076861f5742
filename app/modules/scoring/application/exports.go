package scoringservice

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"github.com/xuri/excelize/v2"
)

const (
	leaderboardSheet = "Leaderboard"
	cluesSheet       = "Clues"
)

var (
	chartBackground = drawing.ColorFromHex("101418")
	chartBar        = drawing.ColorFromHex("e0a526")
	chartText       = drawing.ColorFromHex("e6e6e6")
)

// ResultsWorkbook renders the results as an xlsx file with a leaderboard
// sheet and a per-clue sheet.
func (s *ScoringService) ResultsWorkbook(ctx context.Context, res *RoundResults) ([]byte, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "ResultsWorkbook", res.RoundID.String(),
		func(ctx context.Context) (results.OperationResult[[]byte, error], error) {
			data, err := buildWorkbook(res)
			if err != nil {
				return operation.Fail[[]byte](err)
			}
			return operation.Success(data)
		}))
}

func buildWorkbook(res *RoundResults) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), leaderboardSheet); err != nil {
		return nil, fmt.Errorf("failed to name leaderboard sheet: %w", err)
	}
	if _, err := f.NewSheet(cluesSheet); err != nil {
		return nil, fmt.Errorf("failed to add clues sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	names := make(map[string]string)
	leaderboard := [][]any{{"Rank", "Player", "Total", "Singer Bonus"}}
	for i, e := range res.Leaderboard {
		names[e.PlayerID.String()] = e.DisplayName
		leaderboard = append(leaderboard, []any{i + 1, e.DisplayName, e.TotalScore, e.SingerBonus})
	}

	clues := [][]any{{"Clue", "Title", "Artist", "Singer", "Player", "AI Score", "Base", "Speed", "Artist Bonus", "Total", "Fallback", "Reasoning"}}
	for _, c := range res.Clues {
		for _, sc := range c.Scores {
			clues = append(clues, []any{
				c.ClueIndex + 1, c.Title, c.Artist, c.SingerName, names[sc.PlayerID.String()],
				sc.AIScore, sc.Base, sc.Speed, sc.Artist, sc.Total, sc.UsedFallback, sc.Reasoning,
			})
		}
	}

	for sheet, rows := range map[string][][]any{leaderboardSheet: leaderboard, cluesSheet: clues} {
		if err := writeRows(f, sheet, rows, header); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

// LeaderboardChart renders the leaderboard as a PNG bar chart, or a
// placeholder image when nobody scored.
func (s *ScoringService) LeaderboardChart(ctx context.Context, entries []gametypes.LeaderboardEntry) ([]byte, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "LeaderboardChart", "",
		func(ctx context.Context) (results.OperationResult[[]byte, error], error) {
			data, err := renderLeaderboard(entries)
			if err != nil {
				return operation.Fail[[]byte](err)
			}
			return operation.Success(data)
		}))
}

func renderLeaderboard(entries []gametypes.LeaderboardEntry) ([]byte, error) {
	top := 0
	bars := make([]chart.Value, 0, len(entries))
	for _, e := range entries {
		top = max(top, e.TotalScore)
		bars = append(bars, chart.Value{
			Label: e.DisplayName,
			Value: float64(e.TotalScore),
			Style: chart.Style{FillColor: chartBar, StrokeColor: chartBar},
		})
	}
	if top == 0 {
		return renderPlaceholder("No scores yet")
	}

	graph := chart.BarChart{
		Title:      "Leaderboard",
		TitleStyle: chart.Style{FontColor: chartText},
		Width:      800,
		Height:     400,
		BarWidth:   60,
		Background: chart.Style{FillColor: chartBackground, Padding: chart.Box{Top: 40}},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      chart.Style{FontColor: chartText},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: chartText},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top)},
		},
		Bars: bars,
	}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render leaderboard chart: %w", err)
	}
	return buf.Bytes(), nil
}

// renderPlaceholder draws an empty chart whose single bar carries msg.
func renderPlaceholder(msg string) ([]byte, error) {
	graph := chart.BarChart{
		Width:      400,
		Height:     200,
		BarWidth:   40,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis:      chart.Style{FontColor: chartText},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []chart.Value{{Label: msg, Value: 0}},
	}
	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render placeholder chart: %w", err)
	}
	return buf.Bytes(), nil
}
