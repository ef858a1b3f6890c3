package stream

import (
	"context"
	"strings"

	"github.com/prestige-dev/prestige/internal/autofix"
	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/executor"
	"github.com/prestige-dev/prestige/internal/llm"
	"github.com/prestige-dev/prestige/internal/logger"
)

// Callbacks observe stream processing; any field may be nil. Auto-fix
// progress is reported through the fixer's own callbacks.
type Callbacks struct {
	OnOperationsUpdate func(ops []*directive.Operation)
	// OnCommand receives rebuild/restart/refresh requests; the host owns
	// the app process.
	OnCommand func(commandType string)
	// OnIntegration receives integration setup requests; the host owns
	// provider configuration.
	OnIntegration func(req executor.IntegrationRequest)
	// OnChatSummary receives the conversation summary, when one was sent.
	OnChatSummary func(summary string)
	OnComplete    func(finalResponseText string)
	OnError       func(err error)
}

// Applier applies a batch of parsed operations.
type Applier interface {
	Apply(ctx context.Context, sessionID string, ops []*directive.Operation) *executor.Result
}

// Fixer runs the bounded auto-fix loop after a response is applied.
type Fixer interface {
	Run(ctx context.Context, projectRoot, sessionID, responseText string) (*autofix.Result, error)
}

const continuationSystemPrompt = `You are implementing one step of a multi-step plan in a web project.
Respond with prestige directives only; emit the full content of every file you change.`

// Processor drives the parse, apply and auto-fix pipeline for response
// streams, including continuation chains.
type Processor struct {
	manager     *Manager
	applier     Applier
	fixer       Fixer
	client      llm.Client
	projectRoot string
	callbacks   Callbacks
	log         *logger.Logger
}

// NewProcessor creates a Processor. client may be nil when continuation
// chains are not used; fixer may be nil to skip auto-fix.
func NewProcessor(manager *Manager, applier Applier, fixer Fixer, client llm.Client, projectRoot string, callbacks Callbacks) *Processor {
	return &Processor{
		manager:     manager,
		applier:     applier,
		fixer:       fixer,
		client:      client,
		projectRoot: projectRoot,
		callbacks:   callbacks,
		log:         logger.Global().WithPrefix("stream"),
	}
}

// Stream accumulates one session's response text chunk by chunk.
type Stream struct {
	Session *Session

	p   *Processor
	buf strings.Builder
}

// Start opens a session and returns the stream accumulating its text.
func (p *Processor) Start(parentID string, cont *Continuation) *Stream {
	session := p.manager.Open(parentID, cont)
	return &Stream{Session: session, p: p}
}

// Append adds a chunk and re-parses the accumulated buffer. Finished
// operations never regress as more chunks arrive, so the returned list is
// safe to preview incrementally.
func (s *Stream) Append(chunk string) []*directive.Operation {
	s.buf.WriteString(chunk)
	ops := directive.Parse(s.buf.String())
	if s.p.callbacks.OnOperationsUpdate != nil {
		s.p.callbacks.OnOperationsUpdate(ops)
	}
	return ops
}

// Text returns the accumulated response text with think spans stripped.
func (s *Stream) Text() string {
	return directive.VisibleText(s.buf.String())
}

// Finish runs the full pipeline on the completed response: final parse,
// apply, auto-fix, then any continuation chain. The session is closed
// when Finish returns.
func (s *Stream) Finish() (*autofix.Result, error) {
	defer s.p.manager.Close(s.Session.ID)

	result, err := s.p.process(s.Session, s.buf.String())
	if err != nil {
		return result, err
	}

	s.p.runContinuation(s.Session)
	return result, nil
}

// process applies one complete response and runs auto-fix on the result.
func (p *Processor) process(session *Session, responseText string) (*autofix.Result, error) {
	ctx := session.Context()

	ops := directive.ParseComplete(responseText)
	if p.callbacks.OnOperationsUpdate != nil {
		p.callbacks.OnOperationsUpdate(ops)
	}

	applied := p.applier.Apply(ctx, session.ID, ops)
	for _, opErr := range applied.Errors {
		p.log.Warn("session %s: %v", session.ID, opErr)
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(opErr)
		}
	}

	// Host-owned signals surface before auto-fix runs.
	if p.callbacks.OnCommand != nil {
		for _, commandType := range applied.Commands {
			p.callbacks.OnCommand(commandType)
		}
	}
	if p.callbacks.OnIntegration != nil {
		for _, req := range applied.Integrations {
			p.callbacks.OnIntegration(req)
		}
	}
	if applied.ChatSummary != "" && p.callbacks.OnChatSummary != nil {
		p.callbacks.OnChatSummary(applied.ChatSummary)
	}

	var fixResult *autofix.Result
	if p.fixer != nil && session.Live() {
		var err error
		fixResult, err = p.fixer.Run(ctx, p.projectRoot, session.ID, responseText)
		if err != nil {
			p.log.Warn("session %s: auto-fix rejected: %v", session.ID, err)
			if p.callbacks.OnError != nil {
				p.callbacks.OnError(err)
			}
		}
	}

	if p.callbacks.OnComplete != nil {
		p.callbacks.OnComplete(directive.VisibleText(responseText))
	}
	return fixResult, nil
}

// runContinuation works through the remaining plan steps, one child
// stream per step. Liveness is checked per iteration; an in-flight step
// always runs to completion.
func (p *Processor) runContinuation(parent *Session) {
	cont := parent.Continuation
	if cont == nil || cont.NextStep == nil {
		return
	}
	if p.client == nil {
		p.log.Warn("session %s: continuation plan %s has no client", parent.ID, cont.PlanID)
		return
	}

	for parent.Live() {
		prompt, ok := cont.NextStep()
		if !ok {
			return
		}

		child := p.manager.Open(parent.ID, nil)
		text, err := p.client.Complete(child.Context(), continuationSystemPrompt, prompt)
		if err != nil {
			p.log.Error("session %s: continuation step failed: %v", child.ID, err)
			if p.callbacks.OnError != nil {
				p.callbacks.OnError(err)
			}
			p.manager.Close(child.ID)
			return
		}

		if _, err := p.process(child, text); err != nil && p.callbacks.OnError != nil {
			p.callbacks.OnError(err)
		}
		p.manager.Close(child.ID)
	}
}
