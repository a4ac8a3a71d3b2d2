// SPDX-License-Identifier: MIT

// Package filter implements the moderation engine: severity-threshold
// filters over Content Safety text analysis, and the staged pipeline that
// combines them with LLM adjudication and automatic blocklisting.
package filter

import (
	"context"

	"github.com/Azure-Samples/content-safety/internal/azcs"
)

// Level is a filter sensitivity. The value is the minimum severity at which
// the filter trips, so High sensitivity trips earliest.
type Level int

const (
	LevelHigh   Level = 2
	LevelMedium Level = 4
	LevelLow    Level = 6
)

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return "custom"
	}
}

// Analyzer is the part of the upstream client the filter needs.
type Analyzer interface {
	AnalyzeText(ctx context.Context, req azcs.AnalyzeTextRequest) (*azcs.AnalyzeTextResult, error)
}

// Result is the outcome of one filter check.
type Result struct {
	Flagged        bool
	Category       azcs.TextCategory
	Severity       int
	BlocklistMatch string // matched blocklist item text, if any
}

// Filter checks text against the harm categories at a fixed sensitivity.
type Filter struct {
	analyzer   Analyzer
	level      Level
	blocklists []string
}

// NewFilter creates a filter. Any blocklist names given are consulted during
// analysis; a blocklist match flags the content regardless of severity.
func NewFilter(analyzer Analyzer, level Level, blocklists ...string) *Filter {
	return &Filter{
		analyzer:   analyzer,
		level:      level,
		blocklists: blocklists,
	}
}

// Check analyses the text and reports whether it trips this filter.
func (f *Filter) Check(ctx context.Context, text string) (Result, error) {
	res, err := f.analyzer.AnalyzeText(ctx, azcs.AnalyzeTextRequest{
		Text:           text,
		Categories:     azcs.DefaultCategories(),
		BlocklistNames: f.blocklists,
		OutputType:     azcs.FourSeverityLevels,
	})
	if err != nil {
		return Result{}, err
	}

	if len(res.BlocklistsMatch) > 0 {
		m := res.BlocklistsMatch[0]
		sev, cat := res.MaxSeverity()
		return Result{
			Flagged:        true,
			Category:       cat,
			Severity:       sev,
			BlocklistMatch: m.BlocklistItemText,
		}, nil
	}

	for _, ca := range res.CategoriesAnalysis {
		if ca.Severity >= int(f.level) {
			return Result{Flagged: true, Category: ca.Category, Severity: ca.Severity}, nil
		}
	}

	sev, cat := res.MaxSeverity()
	return Result{Category: cat, Severity: sev}, nil
}
