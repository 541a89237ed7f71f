package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

// UsageWindow is a half-open [Start, End) reporting interval.
type UsageWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ModeUsage counts sessions and distinct users per mode inside a window.
type ModeUsage struct {
	Mode     model.SessionMode `json:"mode"`
	Sessions int               `json:"sessions"`
	Users    int               `json:"users"`
}

// ExamSummary aggregates submitted exam outcomes inside a window. Rates and
// averages carry one decimal.
type ExamSummary struct {
	Submitted   int      `json:"submitted"`
	Passes      int      `json:"passes"`
	Fails       int      `json:"fails"`
	PassRatePct float64  `json:"pass_rate_pct"`
	AvgScorePct *float64 `json:"avg_score_pct"`
	AvgMinutes  *float64 `json:"avg_minutes"`
}

// AdminStats is the full usage report for a window.
type AdminStats struct {
	Window      UsageWindow `json:"window"`
	UsersTotal  int         `json:"users_total"`
	UsersActive int         `json:"users_active"`
	UsageByMode []ModeUsage `json:"usage_by_mode"`
	Exam        ExamSummary `json:"exam"`
}

// StatsService computes admin-facing usage statistics.
type StatsService struct {
	stats       store.StatsStore
	passPercent int
}

// NewStatsService creates a new StatsService.
func NewStatsService(stats store.StatsStore, passPercent int) *StatsService {
	return &StatsService{stats: stats, passPercent: passPercent}
}

// Collect builds the stats report for the window.
func (s *StatsService) Collect(ctx context.Context, win UsageWindow) (*AdminStats, error) {
	usersTotal, err := s.stats.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	usersActive, err := s.stats.CountActiveUsers(ctx, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	modeRows, err := s.stats.ModeUsage(ctx, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("mode usage: %w", err)
	}
	// Both modes are always present in the report, even at zero.
	byMode := map[model.SessionMode]ModeUsage{
		model.SessionModeExam:     {Mode: model.SessionModeExam},
		model.SessionModePractice: {Mode: model.SessionModePractice},
	}
	for _, r := range modeRows {
		byMode[r.Mode] = ModeUsage{Mode: r.Mode, Sessions: r.Sessions, Users: r.Users}
	}

	summary, err := s.examSummary(ctx, win)
	if err != nil {
		return nil, err
	}

	return &AdminStats{
		Window:      win,
		UsersTotal:  usersTotal,
		UsersActive: usersActive,
		UsageByMode: []ModeUsage{byMode[model.SessionModeExam], byMode[model.SessionModePractice]},
		Exam:        *summary,
	}, nil
}

func (s *StatsService) examSummary(ctx context.Context, win UsageWindow) (*ExamSummary, error) {
	rows, err := s.stats.SubmittedExamRows(ctx, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("submitted exams: %w", err)
	}

	summary := &ExamSummary{}
	sumScore, scoreCount := 0, 0
	sumMinutes, timeCount := 0.0, 0

	for _, r := range rows {
		summary.Submitted++
		if r.ScorePercent != nil {
			sumScore += *r.ScorePercent
			scoreCount++
			if *r.ScorePercent >= s.passPercent {
				summary.Passes++
			}
		}
		if r.FinishedAt != nil && r.FinishedAt.After(r.StartedAt) {
			sumMinutes += r.FinishedAt.Sub(r.StartedAt).Minutes()
			timeCount++
		}
	}

	summary.Fails = summary.Submitted - summary.Passes
	if summary.Submitted > 0 {
		summary.PassRatePct = round1(100 * float64(summary.Passes) / float64(summary.Submitted))
	}
	if scoreCount > 0 {
		avg := round1(float64(sumScore) / float64(scoreCount))
		summary.AvgScorePct = &avg
	}
	if timeCount > 0 {
		avg := round1(sumMinutes / float64(timeCount))
		summary.AvgMinutes = &avg
	}
	return summary, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
