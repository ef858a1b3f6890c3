// Package directive parses the prestige wire grammar out of streaming AI
// responses. The parser is pure: it re-scans the whole accumulated buffer
// on every call and never keeps state between calls.
package directive

import "fmt"

// Kind identifies the directive variant an operation was parsed from.
type Kind string

const (
	KindWrite          Kind = "write"
	KindRename         Kind = "rename"
	KindDelete         Kind = "delete"
	KindAddDependency  Kind = "add-dependency"
	KindCommand        Kind = "command"
	KindAddIntegration Kind = "add-integration"
	KindChatSummary    Kind = "chat-summary"
	KindThink          Kind = "think"
)

// State tracks an operation's completeness. Transitions are monotonic:
// pending operations become finished when the closing marker arrives, or
// aborted when the stream ends without one. Never both, never reversed.
type State string

const (
	StatePending  State = "pending"
	StateFinished State = "finished"
	StateAborted  State = "aborted"
)

// Command types surfaced by <prestige-command>.
const (
	CommandRebuild = "rebuild"
	CommandRestart = "restart"
	CommandRefresh = "refresh"
)

// Operation is the typed representation of one directive.
// Fields are populated per Kind; Position is the byte offset of the
// opening marker in the source text and defines apply order.
type Operation struct {
	Kind     Kind  `json:"kind"`
	State    State `json:"state"`
	Position int   `json:"position"`

	Path        string   `json:"path,omitempty"`        // write, delete
	Description string   `json:"description,omitempty"` // write
	Content     string   `json:"content,omitempty"`     // write, add-integration
	From        string   `json:"from,omitempty"`        // rename
	To          string   `json:"to,omitempty"`          // rename
	Packages    []string `json:"packages,omitempty"`    // add-dependency
	CommandType string   `json:"command_type,omitempty"`
	Provider    string   `json:"provider,omitempty"` // add-integration
	Text        string   `json:"text,omitempty"`     // chat-summary, think
}

// Finished reports whether the operation may be applied.
func (op *Operation) Finished() bool {
	return op.State == StateFinished
}

// Summary returns a short human-readable description for notifications
// and logs.
func (op *Operation) Summary() string {
	switch op.Kind {
	case KindWrite:
		return fmt.Sprintf("write %s", op.Path)
	case KindRename:
		return fmt.Sprintf("rename %s -> %s", op.From, op.To)
	case KindDelete:
		return fmt.Sprintf("delete %s", op.Path)
	case KindAddDependency:
		return fmt.Sprintf("add dependencies %v", op.Packages)
	case KindCommand:
		return fmt.Sprintf("command %s", op.CommandType)
	case KindAddIntegration:
		return fmt.Sprintf("add integration %s", op.Provider)
	case KindChatSummary:
		return "chat summary"
	case KindThink:
		return "think"
	default:
		return string(op.Kind)
	}
}

// HasPendingDependencies reports whether any AddDependency operation in
// the list has not been aborted. The auto-fix orchestrator defers while
// dependencies from the triggering response have yet to land.
func HasPendingDependencies(ops []*Operation) bool {
	for _, op := range ops {
		if op.Kind == KindAddDependency && op.State != StateAborted {
			return true
		}
	}
	return false
}
