// Package executorloop implements the executor process's main loop: watch
// the protocols channel, run each incoming protocol through
// internal/service/executor, and publish its result on the status channel
// (spec §4.5 "Executor side", §6.3).
package executorloop

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/broker"
	"github.com/ngoclaw/deskflow/internal/domain/protocol"
	"github.com/ngoclaw/deskflow/internal/service/executor"
)

// Broker is the executor-side transport slice the loop needs.
type Broker interface {
	Send(ctx context.Context, channel string, payload any, requestID string) error
	Receive(ctx context.Context, channel string, timeoutMs int, requestID string) (payload []byte, ok bool, err error)
}

// Config controls the loop's poll cadence.
type Config struct {
	PollIntervalMs int
}

func DefaultConfig() Config {
	return Config{PollIntervalMs: 100}
}

// Loop watches broker.ChannelProtocols and sequences every incoming
// protocol through exec, one at a time (spec §4.2: the Executor runs a
// single protocol to completion before accepting the next).
// 状态上报必须携带与提交时相同的 request_id，否则 planner 永远等不到结果。
type Loop struct {
	broker Broker
	exec   *executor.Executor
	logger *zap.Logger
	cfg    Config
}

func New(b Broker, exec *executor.Executor, logger *zap.Logger, cfg Config) *Loop {
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 100
	}
	return &Loop{broker: b, exec: exec, logger: logger, cfg: cfg}
}

// Run blocks servicing incoming protocols until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		raw, ok, err := l.broker.Receive(ctx, broker.ChannelProtocols, l.cfg.PollIntervalMs, "")
		if err != nil {
			if l.logger != nil {
				l.logger.Warn("protocol channel receive failed", zap.Error(err))
			}
			continue
		}
		if !ok {
			continue
		}
		l.runOne(ctx, raw)
	}
}

func (l *Loop) runOne(ctx context.Context, raw []byte) {
	p, err := protocol.DecodeJSON(raw)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("malformed protocol payload", zap.Error(err))
		}
		// No parsed metadata.id to correlate against; best effort is to
		// scrape it straight out of the raw payload.
		var fallback struct {
			Metadata struct {
				ID string `json:"id"`
			} `json:"metadata"`
		}
		_ = json.Unmarshal(raw, &fallback)
		l.sendStatus(ctx, fallback.Metadata.ID, &executor.Result{
			Status: executor.StatusFailed,
			Error:  err.Error(),
		})
		return
	}

	requestID := p.Metadata.ID
	if l.logger != nil {
		l.logger.Info("executing protocol", zap.String("request_id", requestID), zap.Int("actions", len(p.Actions)))
	}
	result := l.exec.Execute(ctx, p, nil)
	l.sendStatus(ctx, requestID, result)
}

func (l *Loop) sendStatus(ctx context.Context, requestID string, result *executor.Result) {
	status := broker.ProtocolStatus{
		ProtocolID:       result.ProtocolID,
		Status:           string(result.Status),
		ActionsCompleted: result.ActionsCompleted,
		ActionsTotal:     result.ActionsTotal,
		DurationMs:       result.DurationMs,
		StartedAtMs:      result.StartedAt.UnixMilli(),
		FinishedAtMs:      result.FinishedAt.UnixMilli(),
		Error:            result.Error,
		ContextSnapshot:  result.ContextSnapshot,
	}
	if result.ErrorDetails != nil {
		status.ErrorDetails = &broker.ErrorDetails{
			ActionIndex: result.ErrorDetails.ActionIndex,
			ActionName:  result.ErrorDetails.ActionName,
			Params:      result.ErrorDetails.Params,
			Kind:        string(result.ErrorDetails.Kind),
			Trace:       result.ErrorDetails.Trace,
		}
	}
	if err := l.broker.Send(ctx, broker.ChannelStatus, status, requestID); err != nil && l.logger != nil {
		l.logger.Warn("failed to send protocol_status", zap.Error(err))
	}
}
