// Package executor applies finished operations against a project tree.
// Each operation is best-effort: one failure is collected and the
// remaining operations still run, so a batch never aborts as a whole.
package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/fs"
	"github.com/prestige-dev/prestige/internal/logger"
)

// Notification describes one applied operation, emitted for observability.
type Notification struct {
	Kind     directive.Kind `json:"kind"`
	Path     string         `json:"path,omitempty"`
	From     string         `json:"from,omitempty"`
	To       string         `json:"to,omitempty"`
	Packages []string       `json:"packages,omitempty"`
	Message  string         `json:"message"`
}

// NotifyFunc receives a notification per successfully applied operation.
type NotifyFunc func(Notification)

// OperationError ties a failed operation to its error.
type OperationError struct {
	Op  *directive.Operation
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op.Summary(), e.Err)
}

// IntegrationRequest surfaces a prestige-add-integration directive to the
// host, which owns provider setup.
type IntegrationRequest struct {
	Provider string
	Content  string
}

// Result reports the outcome of applying one batch of operations.
type Result struct {
	AppliedCount int
	Errors       []*OperationError
	// Commands holds rebuild/restart/refresh signals for the caller; the
	// executor never runs the app process itself.
	Commands []string
	// Integrations holds integration setup requests for the caller.
	Integrations []IntegrationRequest
	// ChatSummary is the last chat-summary text seen, if any.
	ChatSummary string
	// InstallFailed is set when a dependency install failed; the auto-fix
	// loop treats the surrounding attempt as aborted.
	InstallFailed bool
}

// Journal persists applied operations; implementations must tolerate
// being nil-configured (the executor checks).
type Journal interface {
	RecordOperation(ctx context.Context, sessionID string, op *directive.Operation) error
}

// Executor applies finished operations in position order.
//
// When several writes target the same path within one batch they all
// apply in source order, so the last write wins. Both are still
// notified and journaled, keeping the history auditable.
type Executor struct {
	fs        fs.FileSystem
	installer Installer
	journal   Journal
	notify    NotifyFunc
	log       *logger.Logger
}

// New creates an Executor. installer, journal and notify may each be nil.
func New(filesystem fs.FileSystem, installer Installer, journal Journal, notify NotifyFunc) *Executor {
	return &Executor{
		fs:        filesystem,
		installer: installer,
		journal:   journal,
		notify:    notify,
		log:       logger.Global().WithPrefix("executor"),
	}
}

// Apply runs every finished operation strictly in position order. Pending
// and aborted operations are skipped. Calls are synchronous relative to
// each other so disk and mirror never diverge mid-batch.
func (e *Executor) Apply(ctx context.Context, sessionID string, ops []*directive.Operation) *Result {
	ordered := make([]*directive.Operation, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	result := &Result{}
	for _, op := range ordered {
		if !op.Finished() {
			continue
		}

		if err := e.applyOne(ctx, op, result); err != nil {
			e.log.Warn("operation failed: %s: %v", op.Summary(), err)
			result.Errors = append(result.Errors, &OperationError{Op: op, Err: err})
			if op.Kind == directive.KindAddDependency {
				result.InstallFailed = true
			}
			continue
		}

		result.AppliedCount++
		e.record(ctx, sessionID, op)
	}
	return result
}

func (e *Executor) applyOne(ctx context.Context, op *directive.Operation, result *Result) error {
	switch op.Kind {
	case directive.KindWrite:
		if op.Path == "" {
			return fmt.Errorf("write directive missing path")
		}
		// Content goes to disk verbatim; no normalization.
		if err := e.fs.WriteFile(ctx, op.Path, []byte(op.Content)); err != nil {
			return err
		}
		e.emit(Notification{Kind: op.Kind, Path: op.Path, Message: "wrote " + op.Path})

	case directive.KindRename:
		if op.From == "" || op.To == "" {
			return fmt.Errorf("rename directive missing from/to")
		}
		if err := e.fs.Rename(ctx, op.From, op.To); err != nil {
			return err
		}
		e.emit(Notification{Kind: op.Kind, From: op.From, To: op.To,
			Message: fmt.Sprintf("renamed %s to %s", op.From, op.To)})

	case directive.KindDelete:
		if op.Path == "" {
			return fmt.Errorf("delete directive missing path")
		}
		if err := e.fs.Delete(ctx, op.Path); err != nil {
			return err
		}
		e.emit(Notification{Kind: op.Kind, Path: op.Path, Message: "deleted " + op.Path})

	case directive.KindAddDependency:
		if len(op.Packages) == 0 {
			return fmt.Errorf("add-dependency directive has no packages")
		}
		if e.installer == nil {
			return fmt.Errorf("no package installer configured")
		}
		install := e.installer.Install(ctx, op.Packages)
		if !install.Success {
			return fmt.Errorf("package install failed: %s", install.Output)
		}
		e.emit(Notification{Kind: op.Kind, Packages: install.InstalledPackages,
			Message: fmt.Sprintf("installed %v", install.InstalledPackages)})

	case directive.KindCommand:
		switch op.CommandType {
		case directive.CommandRebuild, directive.CommandRestart, directive.CommandRefresh:
			result.Commands = append(result.Commands, op.CommandType)
			e.emit(Notification{Kind: op.Kind, Message: "requested " + op.CommandType})
		default:
			return fmt.Errorf("unknown command type %q", op.CommandType)
		}

	case directive.KindAddIntegration:
		result.Integrations = append(result.Integrations, IntegrationRequest{
			Provider: op.Provider,
			Content:  op.Content,
		})
		e.emit(Notification{Kind: op.Kind, Message: "requested integration " + op.Provider})

	case directive.KindChatSummary:
		result.ChatSummary = op.Text

	case directive.KindThink:
		// Reasoning spans never touch the project.

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	return nil
}

func (e *Executor) emit(n Notification) {
	if e.notify != nil {
		e.notify(n)
	}
}

func (e *Executor) record(ctx context.Context, sessionID string, op *directive.Operation) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordOperation(ctx, sessionID, op); err != nil {
		e.log.Warn("journal write failed for %s: %v", op.Summary(), err)
	}
}
