// Package detect normalizes output of external static-analysis tools into
// the common problem schema. A checker failing (missing tool, crash,
// timeout) is logged and skipped; a degraded report beats no report.
package detect

import (
	"context"
	"time"

	"github.com/prestige-dev/prestige/internal/fs"
	"github.com/prestige-dev/prestige/internal/logger"
	"github.com/prestige-dev/prestige/internal/problems"
)

// Checker runs one external analysis tool against a project root.
type Checker interface {
	Name() string
	Check(ctx context.Context, projectRoot string) ([]problems.Problem, error)
}

// Detector merges the results of independent checkers into one report.
type Detector struct {
	checkers []Checker
	fs       fs.FileSystem
	timeout  time.Duration
	log      *logger.Logger
}

// New creates a Detector. filesystem is used for snippet enrichment and
// may be nil to skip snippets. timeout bounds each checker call.
func New(filesystem fs.FileSystem, timeout time.Duration, checkers ...Checker) *Detector {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Detector{
		checkers: checkers,
		fs:       filesystem,
		timeout:  timeout,
		log:      logger.Global().WithPrefix("detect"),
	}
}

// Detect runs every checker and returns the merged, deduplicated report.
// It never returns an error: the worst case is an empty report.
func (d *Detector) Detect(ctx context.Context, projectRoot string) *problems.Report {
	var merged []problems.Problem

	for _, checker := range d.checkers {
		checkerCtx, cancel := context.WithTimeout(ctx, d.timeout)
		found, err := checker.Check(checkerCtx, projectRoot)
		cancel()

		if err != nil {
			d.log.Warn("checker %s failed, report degrades: %v", checker.Name(), err)
			continue
		}
		d.log.Debug("checker %s reported %d problems", checker.Name(), len(found))
		merged = append(merged, found...)
	}

	if d.fs != nil {
		problems.EnrichSnippets(ctx, d.fs, merged)
	}
	return problems.NewReport(projectRoot, merged)
}
