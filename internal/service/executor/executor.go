// Package executor implements the Protocol Executor (spec §4.2): the
// sequencer that deterministically runs a validated protocol.Protocol
// against an action.Registry and platform driver, producing an
// ExecutionResult and emitting per-action progress to a pluggable log sink.
package executor

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
	"github.com/ngoclaw/deskflow/internal/domain/execctx"
	"github.com/ngoclaw/deskflow/internal/domain/protocol"
	"github.com/ngoclaw/deskflow/internal/service/substitute"
)

// Status is the terminal (or interrupted) classification of an ExecutionResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusTimeout Status = "timeout"
)

// ErrorDetails describes the action that terminated a failed execution
// (spec §3 ExecutionResult.error_details).
type ErrorDetails struct {
	ActionIndex int
	ActionName  string
	Params      map[string]any
	Kind        apperr.Kind
	Trace       string
}

// Result is the outcome of one protocol execution (spec §3 ExecutionResult).
// ProtocolID 取自 metadata.id，与 broker 上的 request_id 保持一致，
// 用于 planner 按 request_id 过滤 status 消息。
type Result struct {
	ProtocolID       string
	Status           Status
	ActionsCompleted int
	ActionsTotal     int
	DurationMs       int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Error            string
	ErrorDetails     *ErrorDetails
	ContextSnapshot  map[string]any
}

// ActionLogEntry is emitted to the LogSink after every action (spec §4.2.4).
type ActionLogEntry struct {
	Index             int
	Name              string
	SubstitutedParams map[string]any
	Outcome           string // "success" | "failed" | "skipped"
	DurationMs        int64
}

// LogSink is the pluggable observability hook; nil is a valid no-op sink.
type LogSink interface {
	LogAction(entry ActionLogEntry)
}

// Config controls executor behavior (spec §6.4 Execution: dry_run, max_macro_depth).
type Config struct {
	DryRun        bool
	MaxMacroDepth int
	PollInterval  time.Duration // pause/stop cooperative poll granularity
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MaxMacroDepth: 5, PollInterval: 20 * time.Millisecond}
}

// Executor sequences a validated Protocol's actions against a Registry.
// 协议执行器，顺序执行已校验协议中的每一步动作。
type Executor struct {
	registry action.Registry
	deps     action.Deps
	logger   *zap.Logger
	sink     LogSink
	cfg      Config

	sm  *StateMachine
	ctx *execctx.Context
}

// depsProvider is satisfied by registry.Registry; kept narrow to avoid an
// import cycle between executor and registry.
type depsProvider interface {
	Deps() action.Deps
}

// New creates an Executor. registry must already have its collaborators
// injected (action.Registry.Inject) if any handler the protocol uses needs
// them.
func New(registry action.Registry, logger *zap.Logger, sink LogSink, cfg Config) *Executor {
	if cfg.MaxMacroDepth <= 0 {
		cfg.MaxMacroDepth = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	var deps action.Deps
	if dp, ok := registry.(depsProvider); ok {
		deps = dp.Deps()
	}
	return &Executor{
		registry: registry,
		deps:     deps,
		logger:   logger,
		sink:     sink,
		cfg:      cfg,
		sm:       NewStateMachine(logger),
	}
}

// Pause transitions the run to paused, if currently running.
func (e *Executor) Pause() {
	if e.ctx != nil {
		e.ctx.Pause()
	}
}

// Resume transitions a paused run back to running.
func (e *Executor) Resume() {
	if e.ctx != nil {
		e.ctx.Resume()
	}
}

// Stop requests cooperative cancellation. Idempotent.
func (e *Executor) Stop() {
	if e.ctx != nil {
		e.ctx.RequestStop()
	}
}

// Execute runs protocol to completion, blocking until a terminal state.
func (e *Executor) Execute(ctx context.Context, p *protocol.Protocol, initialVars map[string]any) *Result {
	e.ctx = execctx.New(initialVars)
	// Each run gets a fresh state machine: terminal states are absorbing.
	e.sm = NewStateMachine(e.logger)
	protoID := p.Metadata.ID
	if protoID == "" {
		protoID = p.Metadata.Description
	}

	if err := e.sm.Transition(StateRunning); err != nil {
		return &Result{ProtocolID: protoID, Status: StatusFailed, Error: err.Error()}
	}

	res := &Result{
		ProtocolID:   protoID,
		ActionsTotal: len(p.Actions),
		StartedAt:    e.ctx.StartedAt,
	}

	completed := 0
	var termErr *apperr.Error
	var failAt int
	var failName string
	var failParams map[string]any

actionLoop:
	for i := range p.Actions {
		if e.ctx.StopRequested() {
			res.Status = StatusStopped
			break actionLoop
		}
		if !e.waitWhilePaused(ctx) {
			res.Status = StatusStopped
			break actionLoop
		}

		a := &p.Actions[i]
		start := time.Now()

		if a.IsMacroCall() {
			if err := e.runMacroCall(ctx, a, p, 0); err != nil {
				termErr = toAppErr(err)
				failAt, failName, failParams = i, a.Name, a.Params
				e.logAction(i, a.Name, nil, "failed", time.Since(start))
				res.Status = StatusFailed
				break actionLoop
			}
			e.logAction(i, a.Name, nil, "success", time.Since(start))
			completed++
			continue
		}

		substituted, err := substitute.Params(a.Params, e.lookupVar, e.ctx.Keys)
		if err != nil {
			termErr = toAppErr(err)
			failAt, failName, failParams = i, a.Name, a.Params
			e.logAction(i, a.Name, nil, "failed", time.Since(start))
			res.Status = StatusFailed
			break actionLoop
		}

		outputs, err := e.invoke(ctx, a.Name, substituted)
		if err != nil {
			termErr = toAppErr(err)
			failAt, failName, failParams = i, a.Name, substituted
			e.logAction(i, a.Name, substituted, "failed", time.Since(start))
			res.Status = StatusFailed
			break actionLoop
		}
		if outputs != nil {
			e.ctx.SetAll(outputs.Outputs)
		}
		e.logAction(i, a.Name, substituted, "success", time.Since(start))
		completed++

		if !e.sleepCancellable(ctx, time.Duration(a.WaitAfterMs)*time.Millisecond) {
			res.Status = StatusStopped
			break actionLoop
		}
	}

	if res.Status == "" {
		res.Status = StatusSuccess
	}

	switch res.Status {
	case StatusSuccess:
		_ = e.sm.Transition(StateSuccess)
	case StatusFailed:
		_ = e.sm.Transition(StateFailed)
	case StatusStopped:
		_ = e.sm.Transition(StateStopped)
	}

	res.ActionsCompleted = completed
	res.FinishedAt = time.Now()
	res.DurationMs = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	res.ContextSnapshot = e.ctx.Snapshot()

	if termErr != nil {
		res.Error = termErr.Message
		res.ErrorDetails = &ErrorDetails{
			ActionIndex: failAt,
			ActionName:  failName,
			Params:      failParams,
			Kind:        termErr.Kind,
			Trace:       string(debug.Stack()),
		}
	}

	return res
}

func (e *Executor) lookupVar(key string) (any, bool) {
	return e.ctx.Get(key)
}

// runMacroCall resolves and expands a macro invocation (spec §4.2 step 3).
// Top-level actions_completed is not incremented per nested action — the
// caller counts the macro call itself as one completed top-level action.
func (e *Executor) runMacroCall(ctx context.Context, a *protocol.Action, p *protocol.Protocol, depth int) error {
	if depth >= e.cfg.MaxMacroDepth {
		return apperr.Newf(apperr.CyclicMacro, "macro expansion exceeds max depth %d", e.cfg.MaxMacroDepth)
	}
	inv, err := a.MacroParams()
	if err != nil {
		return apperr.New(apperr.UnresolvedMacro, err.Error())
	}
	macro, ok := p.Macros[inv.Name]
	if !ok {
		return apperr.Newf(apperr.UnresolvedMacro, "macro %q is not defined", inv.Name)
	}

	restore := e.ctx.PushMacroScope(inv.Vars)
	defer restore()

	for i := range macro.Actions {
		if e.ctx.StopRequested() {
			return apperr.New(apperr.Cancelled, "stop requested during macro execution")
		}
		if !e.waitWhilePaused(ctx) {
			return apperr.New(apperr.Cancelled, "stop requested while paused during macro execution")
		}

		child := &macro.Actions[i]
		if child.IsMacroCall() {
			if err := e.runMacroCall(ctx, child, p, depth+1); err != nil {
				return err
			}
			continue
		}

		substituted, err := substitute.Params(child.Params, e.lookupVar, e.ctx.Keys)
		if err != nil {
			return err
		}
		outputs, err := e.invoke(ctx, child.Name, substituted)
		if err != nil {
			return err
		}
		if outputs != nil {
			e.ctx.SetAll(outputs.Outputs)
		}
		if !e.sleepCancellable(ctx, time.Duration(child.WaitAfterMs)*time.Millisecond) {
			return apperr.New(apperr.Cancelled, "stop requested during macro delay")
		}
	}
	return nil
}

func (e *Executor) invoke(ctx context.Context, name string, params map[string]any) (*action.Result, error) {
	entry, ok := e.registry.Lookup(name)
	if !ok {
		return nil, apperr.Newf(apperr.UnknownAction, "action %q is not registered", name)
	}
	if !e.registry.IsEnabled(name, entry.Category) {
		return nil, apperr.Newf(apperr.ValidationFailure, "action %q is disabled by configuration", name)
	}

	if e.cfg.DryRun {
		if e.logger != nil {
			e.logger.Info("dry_run: skipping handler invocation", zap.String("action", name))
		}
		return &action.Result{}, nil
	}

	if entry.RequiresDriver && e.deps.Driver == nil {
		return nil, apperr.Newf(apperr.ValidationFailure, "action %q requires a platform driver that was never injected", name)
	}
	if entry.RequiresBroker && e.deps.Broker == nil {
		return nil, apperr.Newf(apperr.ValidationFailure, "action %q requires a broker that was never injected", name)
	}
	if entry.RequiresMouseCtl && e.deps.MouseController == nil {
		return nil, apperr.Newf(apperr.ValidationFailure, "action %q requires a mouse controller that was never injected", name)
	}

	return entry.Handler(ctx, e.deps, params)
}

func (e *Executor) waitWhilePaused(ctx context.Context) bool {
	for e.ctx.Paused() {
		if e.ctx.StopRequested() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(e.cfg.PollInterval):
		}
	}
	return !e.ctx.StopRequested()
}

// sleepCancellable sleeps for d, honoring cooperative cancellation by
// checking stop_requested at cfg.PollInterval granularity (spec §4.2 step 6).
func (e *Executor) sleepCancellable(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !e.ctx.StopRequested()
	}
	deadline := time.Now().Add(d)
	for {
		if e.ctx.StopRequested() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		wait := e.cfg.PollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (e *Executor) logAction(index int, name string, params map[string]any, outcome string, dur time.Duration) {
	if e.sink == nil {
		return
	}
	e.sink.LogAction(ActionLogEntry{
		Index:             index,
		Name:              name,
		SubstitutedParams: params,
		Outcome:           outcome,
		DurationMs:        dur.Milliseconds(),
	})
}

func toAppErr(err error) *apperr.Error {
	if ae, ok := err.(*apperr.Error); ok {
		return ae
	}
	return &apperr.Error{Kind: apperr.DriverFailure, Message: err.Error(), Err: err}
}
