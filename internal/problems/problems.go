// Package problems defines the diagnostic schema shared by the problem
// detector and the auto-fix loop.
package problems

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Problem is one diagnostic from a static checker.
type Problem struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"` // checker that produced it
	Snippet  string   `json:"snippet,omitempty"`
}

// Key returns the identity hash over (file, line, column, message).
// Severity, code and snippet are deliberately excluded: two checkers
// reporting the same location and message are the same problem. A fix
// that only shifts a problem's line produces a different key and is
// counted as fixed; accepted inaccuracy.
func (p *Problem) Key() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s", p.File, p.Line, p.Column, p.Message)
	return h.Sum64()
}

// String formats the problem the way fix prompts reference it.
func (p *Problem) String() string {
	if p.Code != "" {
		return fmt.Sprintf("%s:%d:%d - %s (%s)", p.File, p.Line, p.Column, p.Message, p.Code)
	}
	return fmt.Sprintf("%s:%d:%d - %s", p.File, p.Line, p.Column, p.Message)
}

// Report is a deduplicated, aggregated set of problems. Counts are always
// derived from Problems, never mutated independently.
type Report struct {
	Problems      []Problem `json:"problems"`
	TotalErrors   int       `json:"total_errors"`
	TotalWarnings int       `json:"total_warnings"`
	TotalInfos    int       `json:"total_infos"`
	ProjectRoot   string    `json:"project_root"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewReport deduplicates the given problems by identity key, sorts them by
// file, line and column, and derives the counts.
func NewReport(projectRoot string, problems []Problem) *Report {
	seen := make(map[uint64]bool, len(problems))
	deduped := make([]Problem, 0, len(problems))
	for _, p := range problems {
		key := p.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, p)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	report := &Report{
		Problems:    deduped,
		ProjectRoot: projectRoot,
		Timestamp:   time.Now(),
	}
	for _, p := range deduped {
		switch p.Severity {
		case SeverityError:
			report.TotalErrors++
		case SeverityWarning:
			report.TotalWarnings++
		default:
			report.TotalInfos++
		}
	}
	return report
}

// Errors returns only the error-severity problems.
func (r *Report) Errors() []Problem {
	out := make([]Problem, 0, r.TotalErrors)
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			out = append(out, p)
		}
	}
	return out
}

// Warnings returns only the warning-severity problems.
func (r *Report) Warnings() []Problem {
	out := make([]Problem, 0, r.TotalWarnings)
	for _, p := range r.Problems {
		if p.Severity == SeverityWarning {
			out = append(out, p)
		}
	}
	return out
}

// Fixed returns the problems present in before but absent from after,
// by identity-key set difference.
func Fixed(before, after *Report) []Problem {
	if before == nil {
		return nil
	}
	remaining := make(map[uint64]bool)
	if after != nil {
		for _, p := range after.Problems {
			remaining[p.Key()] = true
		}
	}

	var fixed []Problem
	for _, p := range before.Problems {
		if !remaining[p.Key()] {
			fixed = append(fixed, p)
		}
	}
	return fixed
}
