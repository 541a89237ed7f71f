package service

import (
	"strings"
	"testing"
	"time"

	"github.com/jsacert/exam-engine/internal/model"
)

func sampleResult(correct int) *GradeResult {
	return &GradeResult{
		Total:   40,
		Correct: correct,
		Percent: Percent(correct, 40),
		BySection: []SectionStats{
			{Section: model.SectionObjects, Total: 11, Correct: 5},
			{Section: model.SectionClasses, Total: 7, Correct: 3},
			{Section: model.SectionBuiltins, Total: 12, Correct: 6},
			{Section: model.SectionAdvFunc, Total: 10, Correct: 4},
		},
	}
}

func TestRenderResultPassed(t *testing.T) {
	svc := NewReportService()
	report := svc.RenderResult(sampleResult(30), 70, 7, nil)

	if !strings.HasPrefix(report.Headline, "PASSED") {
		t.Errorf("headline %q, want PASSED prefix", report.Headline)
	}
	if !strings.Contains(report.Headline, "30/40") {
		t.Errorf("headline %q missing score", report.Headline)
	}
	if strings.Contains(report.Footer, "retake") {
		t.Errorf("pass footer %q must not mention the cooldown", report.Footer)
	}
}

func TestRenderResultFailedWithCooldown(t *testing.T) {
	svc := NewReportService()
	nextAt := time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC)
	report := svc.RenderResult(sampleResult(10), 70, 7, &nextAt)

	if !strings.HasPrefix(report.Headline, "FAILED") {
		t.Errorf("headline %q, want FAILED prefix", report.Headline)
	}
	if !strings.Contains(report.Footer, "2026-03-21") {
		t.Errorf("footer %q missing next eligible date", report.Footer)
	}
	if !strings.Contains(report.Footer, "7 days") {
		t.Errorf("footer %q missing cooldown length", report.Footer)
	}
}

func TestRenderSectionOrder(t *testing.T) {
	svc := NewReportService()
	report := svc.RenderResult(sampleResult(18), 70, 7, nil)

	// Sections render in the canonical order regardless of slice order.
	idxObjects := strings.Index(report.Sections, "objects")
	idxAdvFunc := strings.Index(report.Sections, "advfunc")
	if idxObjects < 0 || idxAdvFunc < 0 || idxObjects > idxAdvFunc {
		t.Errorf("section table out of order:\n%s", report.Sections)
	}
	if !strings.Contains(report.Sections, "builtins: 6/12") {
		t.Errorf("section table missing builtins row:\n%s", report.Sections)
	}
}

func TestFormatTimeLeft(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "00:00"},
		{-30, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{600, "10:00"},
		{3599, "59:59"},
	}
	for _, c := range cases {
		if got := FormatTimeLeft(c.in); got != c.want {
			t.Errorf("FormatTimeLeft(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
