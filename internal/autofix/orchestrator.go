// Package autofix runs the bounded fix loop: detect problems, ask the
// model for corrective directives, apply them, re-detect, and stop on
// convergence, stagnation or budget exhaustion.
package autofix

import (
	"context"
	"errors"

	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/executor"
	"github.com/prestige-dev/prestige/internal/llm"
	"github.com/prestige-dev/prestige/internal/logger"
	"github.com/prestige-dev/prestige/internal/problems"
)

// Outcome names why the loop stopped.
type Outcome string

const (
	// OutcomeConverged: zero errors remain.
	OutcomeConverged Outcome = "converged"
	// OutcomeExhaustedAttempts: attempts hit the configured maximum.
	OutcomeExhaustedAttempts Outcome = "exhausted_attempts"
	// OutcomeNoImprovement: an attempt did not reduce the error count.
	OutcomeNoImprovement Outcome = "no_improvement"
	// OutcomeAttemptFailed: the fix call failed before anything could be
	// applied or compared.
	OutcomeAttemptFailed Outcome = "attempt_failed"
	// OutcomeCancelled: the surrounding context was cancelled.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeDeferred: dependencies from the triggering response have not
	// landed yet; no attempt was made.
	OutcomeDeferred Outcome = "deferred"
)

// ErrAlreadyRunning is returned when a run is rejected by the guard.
var ErrAlreadyRunning = errors.New("auto-fix already running for this project")

// Result summarizes one orchestrator run.
type Result struct {
	Success           bool
	Outcome           Outcome
	Attempts          int
	FixedProblems     []problems.Problem
	RemainingProblems []problems.Problem
	// Changes lists the operations applied across all attempts.
	Changes []*directive.Operation
	// Err holds the AI-fix failure that aborted the loop, if any.
	Err error
}

// Detector produces a problem report for a project tree.
type Detector interface {
	Detect(ctx context.Context, projectRoot string) *problems.Report
}

// Applier applies a batch of parsed operations.
type Applier interface {
	Apply(ctx context.Context, sessionID string, ops []*directive.Operation) *executor.Result
}

// Journal records per-attempt accounting for later audit.
type Journal interface {
	RecordFixAttempt(ctx context.Context, sessionID string, attempt, errorsBefore, errorsAfter int, outcome string) error
}

// Callbacks observe the loop; any field may be nil.
type Callbacks struct {
	// OnProgress fires at the start of each attempt with the problems
	// driving it.
	OnProgress func(attempt int, remaining []problems.Problem)
	// OnOperationsUpdate fires with the operations parsed from each fix
	// response, before they are applied.
	OnOperationsUpdate func(ops []*directive.Operation)
}

// Orchestrator drives the bounded auto-fix loop for one project.
type Orchestrator struct {
	guard       *Guard
	detector    Detector
	applier     Applier
	journal     Journal
	fix         llm.FixFunc
	maxAttempts int
	modelID     string
	callbacks   Callbacks
	log         *logger.Logger
}

// New creates an Orchestrator. guard may be shared across orchestrators
// to serialize runs per project; a nil guard gets a private one. journal
// may be nil to skip attempt accounting.
func New(guard *Guard, detector Detector, applier Applier, journal Journal, fix llm.FixFunc, maxAttempts int, modelID string, callbacks Callbacks) *Orchestrator {
	if guard == nil {
		guard = NewGuard()
	}
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Orchestrator{
		guard:       guard,
		detector:    detector,
		applier:     applier,
		journal:     journal,
		fix:         fix,
		maxAttempts: maxAttempts,
		modelID:     modelID,
		callbacks:   callbacks,
		log:         logger.Global().WithPrefix("autofix"),
	}
}

// Run executes the loop for projectRoot. responseText is the AI response
// whose directives were just applied; its dependency directives gate
// entry, and it seeds the conversation context for the first fix call.
//
// Returns ErrAlreadyRunning when another run holds the project.
func (o *Orchestrator) Run(ctx context.Context, projectRoot, sessionID, responseText string) (*Result, error) {
	if !o.guard.TryAcquire(projectRoot) {
		return nil, ErrAlreadyRunning
	}
	defer o.guard.Release(projectRoot)

	// Defer while the triggering response still has dependency installs
	// outstanding; detecting now would report errors the install resolves.
	if directive.HasPendingDependencies(directive.ParseComplete(responseText)) {
		o.log.Info("deferring auto-fix: dependency install pending")
		return &Result{Success: false, Outcome: OutcomeDeferred, Attempts: 0}, nil
	}

	current := o.detector.Detect(ctx, projectRoot)
	if current.TotalErrors == 0 {
		return &Result{
			Success:           true,
			Outcome:           OutcomeConverged,
			Attempts:          0,
			RemainingProblems: current.Problems,
		}, nil
	}

	result := &Result{}
	priorResponse := responseText

	for result.Attempts < o.maxAttempts {
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			break
		}

		result.Attempts++
		o.log.Info("fix attempt %d/%d: %d error(s)", result.Attempts, o.maxAttempts, current.TotalErrors)
		if o.callbacks.OnProgress != nil {
			o.callbacks.OnProgress(result.Attempts, current.Problems)
		}

		fixText, err := o.fix(ctx, BuildFixPrompt(current, o.modelID), priorResponse)
		if err != nil {
			if ctx.Err() != nil {
				result.Outcome = OutcomeCancelled
			} else {
				o.log.Error("fix call failed: %v", err)
				result.Outcome = OutcomeAttemptFailed
				result.Err = err
				o.recordAttempt(ctx, sessionID, result.Attempts, current.TotalErrors, current.TotalErrors, string(OutcomeAttemptFailed))
			}
			break
		}

		ops := directive.ParseComplete(fixText)
		if o.callbacks.OnOperationsUpdate != nil {
			o.callbacks.OnOperationsUpdate(ops)
		}

		applied := o.applier.Apply(ctx, sessionID, ops)
		result.Changes = append(result.Changes, appliedOps(ops, applied)...)
		if applied.InstallFailed {
			// The attempt aborts without a comparison; remaining budget
			// still runs.
			o.log.Warn("attempt %d: dependency install failed, aborting attempt", result.Attempts)
			o.recordAttempt(ctx, sessionID, result.Attempts, current.TotalErrors, current.TotalErrors, "install_failed")
			continue
		}

		next := o.detector.Detect(ctx, projectRoot)
		result.FixedProblems = append(result.FixedProblems, problems.Fixed(current, next)...)

		if next.TotalErrors == 0 {
			o.recordAttempt(ctx, sessionID, result.Attempts, current.TotalErrors, 0, string(OutcomeConverged))
			current = next
			result.Outcome = OutcomeConverged
			break
		}
		if next.TotalErrors >= current.TotalErrors {
			o.log.Info("attempt %d: errors went %d -> %d, stopping", result.Attempts, current.TotalErrors, next.TotalErrors)
			o.recordAttempt(ctx, sessionID, result.Attempts, current.TotalErrors, next.TotalErrors, string(OutcomeNoImprovement))
			current = next
			result.Outcome = OutcomeNoImprovement
			break
		}

		o.recordAttempt(ctx, sessionID, result.Attempts, current.TotalErrors, next.TotalErrors, "improved")
		current = next
		priorResponse = fixText
	}

	if result.Outcome == "" {
		result.Outcome = OutcomeExhaustedAttempts
	}
	result.Success = current.TotalErrors == 0
	result.RemainingProblems = current.Problems
	return result, nil
}

// recordAttempt journals one attempt's error counts. Journal failures
// degrade to a warning; they never affect the loop.
func (o *Orchestrator) recordAttempt(ctx context.Context, sessionID string, attempt, errorsBefore, errorsAfter int, outcome string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.RecordFixAttempt(ctx, sessionID, attempt, errorsBefore, errorsAfter, outcome); err != nil {
		o.log.Warn("journal write failed for attempt %d: %v", attempt, err)
	}
}

// appliedOps returns the finished operations that did not fail.
func appliedOps(ops []*directive.Operation, res *executor.Result) []*directive.Operation {
	failed := make(map[*directive.Operation]bool, len(res.Errors))
	for _, opErr := range res.Errors {
		failed[opErr.Op] = true
	}
	var out []*directive.Operation
	for _, op := range ops {
		if op.Finished() && !failed[op] {
			out = append(out, op)
		}
	}
	return out
}
