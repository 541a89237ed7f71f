package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jsacert/exam-engine/internal/model"
)

// Report is the rendered, transport-agnostic result summary. The external
// presentation layer decides how to decorate and deliver these strings.
type Report struct {
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
	Sections string `json:"sections"`
	Footer   string `json:"footer"`
}

// ReportService renders grade results into human-readable text.
type ReportService struct{}

// NewReportService creates a new ReportService.
func NewReportService() *ReportService {
	return &ReportService{}
}

// RenderResult builds the post-submission report. nextEligibleAt is only
// consulted for failed results.
func (r *ReportService) RenderResult(result *GradeResult, passPercent, cooldownDays int, nextEligibleAt *time.Time) Report {
	passed := result.Percent >= passPercent

	icon := "FAILED"
	detail := "You didn't reach the threshold this time."
	if passed {
		icon = "PASSED"
		detail = "Great job! You met the passing threshold."
	}
	headline := fmt.Sprintf("%s — Score: %d/%d (%d%%, pass >= %d%%)",
		icon, result.Correct, result.Total, result.Percent, passPercent)

	footer := "You can start a new practice session any time."
	if !passed {
		if nextEligibleAt != nil {
			footer = fmt.Sprintf("You may retake the exam after %d days: available on %s.",
				cooldownDays, nextEligibleAt.Format("2006-01-02"))
		} else {
			footer = fmt.Sprintf("You may retake the exam after %d days.", cooldownDays)
		}
	}

	return Report{
		Headline: headline,
		Detail:   detail,
		Sections: renderSectionTable(result.BySection),
		Footer:   footer,
	}
}

func renderSectionTable(rows []SectionStats) string {
	lines := []string{"By section:"}
	for _, sec := range model.Sections {
		for _, row := range rows {
			if row.Section == sec {
				lines = append(lines, fmt.Sprintf("  %s: %d/%d", row.Section, row.Correct, row.Total))
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// FormatTimeLeft renders remaining seconds as mm:ss, clamping at 00:00.
func FormatTimeLeft(seconds int64) string {
	if seconds <= 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
