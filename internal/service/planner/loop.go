package planner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/domain/broker"
	"github.com/ngoclaw/deskflow/internal/interfaces/cli"
	"github.com/ngoclaw/deskflow/internal/service/parser"
	"github.com/ngoclaw/deskflow/internal/service/visionnav"
	"github.com/ngoclaw/deskflow/pkg/safego"
)

// Broker is the planner-side transport slice the loop needs.
type Broker interface {
	Send(ctx context.Context, channel string, payload any, requestID string) error
	Receive(ctx context.Context, channel string, timeoutMs int, requestID string) (payload []byte, ok bool, err error)
}

// Config controls the loop's timeouts and confirmation policy (spec §4.5
// concurrency contract Timeouts, §6.4 Validation).
type Config struct {
	TickPollMs             int
	ProtocolStatusTimeout   time.Duration
	LowConfidenceThreshold  float64
	RequireConfirmation     bool
	ParserConfig            parser.Config
	EnabledCategories       []action.Category
}

// DefaultConfig matches spec §4.5/§6.4 stated defaults.
func DefaultConfig() Config {
	return Config{
		TickPollMs:             100,
		ProtocolStatusTimeout:  60 * time.Second,
		LowConfidenceThreshold: DefaultLowConfidenceThreshold,
		RequireConfirmation:    true,
		ParserConfig:           parser.DefaultConfig(),
		EnabledCategories: []action.Category{
			action.CategoryKeyboard, action.CategoryMouse, action.CategoryWindow,
			action.CategoryBrowser, action.CategoryClipboard, action.CategoryFile,
			action.CategoryScreen, action.CategoryTiming, action.CategoryVision,
			action.CategorySystem, action.CategoryEdit,
		},
	}
}

// Loop is the planner's cooperative single-thread main loop (spec §4.5).
// 单线程协作式主循环，视觉请求优先于用户命令被处理。
type Loop struct {
	broker    Broker
	registry  action.Registry
	llm       LLMClient
	navigator *visionnav.Navigator
	confirmer *StdinConfirmer
	renderer  *cli.Renderer
	logger    *zap.Logger
	cfg       Config

	input chan string
}

// New creates a Loop. The caller is responsible for having already
// injected the registry's driver/broker/mouse collaborators if this
// process also hosts the executor in-process; in the normal two-process
// deployment the registry here is used only to read the action schema for
// protocol generation, not to execute anything.
func New(b Broker, registry action.Registry, llm LLMClient, navigator *visionnav.Navigator, confirmer *StdinConfirmer, renderer *cli.Renderer, logger *zap.Logger, cfg Config) *Loop {
	if cfg.TickPollMs <= 0 {
		cfg.TickPollMs = 100
	}
	if cfg.ProtocolStatusTimeout <= 0 {
		cfg.ProtocolStatusTimeout = 60 * time.Second
	}
	return &Loop{
		broker: b, registry: registry, llm: llm, navigator: navigator,
		confirmer: confirmer, renderer: renderer, logger: logger, cfg: cfg,
		input: make(chan string, 1),
	}
}

// Run starts the stdin-reading producer and blocks running the main loop
// until ctx is cancelled (spec §4.5: "cooperative single-thread main loop
// plus one producer thread reading stdin").
func (l *Loop) Run(ctx context.Context) {
	safego.Go(l.logger, "planner-stdin-reader", func() { l.readStdin(ctx) })

	for {
		if ctx.Err() != nil {
			return
		}
		if l.tick(ctx) {
			continue
		}
	}
}

func (l *Loop) readStdin(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case l.input <- scanner.Text():
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// tick implements one main-loop iteration (spec §4.5 pseudocode): vision
// requests are checked first and preempt user commands.
func (l *Loop) tick(ctx context.Context) bool {
	if raw, ok, err := l.broker.Receive(ctx, broker.ChannelVisualNavRequest, l.cfg.TickPollMs, ""); err == nil && ok {
		l.handleIncomingVisionRequest(ctx, raw)
		return true
	}

	select {
	case cmd := <-l.input:
		l.handleCommand(ctx, cmd)
		return true
	case <-time.After(time.Duration(l.cfg.TickPollMs) * time.Millisecond):
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) handleIncomingVisionRequest(ctx context.Context, raw []byte) {
	var req broker.VisualNavRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		if l.logger != nil {
			l.logger.Warn("malformed visual_nav_request", zap.Error(err))
		}
		return
	}
	resp := l.navigator.Navigate(ctx, req.RequestID, req.Task, req.Goal, req.MaxIterations)
	if err := l.broker.Send(ctx, broker.ChannelVisualNavResponse, resp, req.RequestID); err != nil && l.logger != nil {
		l.logger.Warn("failed to send visual_nav_response", zap.Error(err))
	}
}

func (l *Loop) handleCommand(ctx context.Context, text string) {
	intent, err := ParseIntent(ctx, l.llm, text)
	if err != nil {
		fmt.Println("intent parse failed:", err)
		return
	}
	if intent.Confidence < l.cfg.LowConfidenceThreshold {
		fmt.Printf("warning: low-confidence intent parse (%.2f): %s\n", intent.Confidence, intent.Action)
	}

	schema := ActionLibrarySchema(l.registry, l.cfg.EnabledCategories)
	result := GenerateProtocol(ctx, l.llm, l.registry, schema, text, l.cfg.ParserConfig)
	if !result.OK() {
		fmt.Println("protocol generation failed:")
		for _, issue := range result.Errors() {
			fmt.Println(" -", issue.String())
		}
		return
	}

	fmt.Println(l.renderer.RenderProtocol(result.Protocol))
	if l.cfg.RequireConfirmation && !l.confirmYN() {
		fmt.Println("cancelled")
		return
	}

	// requestID 既是 broker 文件名键，也要写入 metadata.id，
	// 否则 executor 回传 status 时无法与这次提交关联。
	requestID := uuid.NewString()
	result.Protocol.Metadata.ID = requestID
	encoded, err := result.Protocol.Encode()
	if err != nil {
		fmt.Println("failed to encode protocol:", err)
		return
	}
	if err := l.broker.Send(ctx, broker.ChannelProtocols, json.RawMessage(encoded), requestID); err != nil {
		fmt.Println("failed to send protocol:", err)
		return
	}

	status, ok := l.waitForStatus(ctx, requestID)
	if !ok {
		fmt.Println("timed out waiting for protocol status")
		return
	}
	fmt.Printf("status: %s  actions: %d/%d\n", status.Status, status.ActionsCompleted, status.ActionsTotal)
	if status.Error != "" {
		fmt.Println("error:", status.Error)
	}
}

// waitForStatus implements the non-blocking wait described in spec §4.5:
// polled, and servicing visual_nav_request on every tick so a nested
// visual_navigate inside the running protocol does not deadlock the
// planner. The deadline is extended whenever a nested vision iteration
// completes (approximated here as: whenever a vision request is serviced).
func (l *Loop) waitForStatus(ctx context.Context, requestID string) (broker.ProtocolStatus, bool) {
	deadline := time.Now().Add(l.cfg.ProtocolStatusTimeout)
	for time.Now().Before(deadline) {
		if raw, ok, err := l.broker.Receive(ctx, broker.ChannelStatus, l.cfg.TickPollMs, requestID); err == nil && ok {
			var status broker.ProtocolStatus
			if err := json.Unmarshal(raw, &status); err != nil {
				return broker.ProtocolStatus{}, false
			}
			return status, true
		}

		if raw, ok, err := l.broker.Receive(ctx, broker.ChannelVisualNavRequest, 0, ""); err == nil && ok {
			l.handleIncomingVisionRequest(ctx, raw)
			deadline = time.Now().Add(l.cfg.ProtocolStatusTimeout)
		}

		if ctx.Err() != nil {
			return broker.ProtocolStatus{}, false
		}
	}
	return broker.ProtocolStatus{}, false
}

func (l *Loop) confirmYN() bool {
	if l.confirmer != nil && l.confirmer.disabled {
		return false
	}
	fmt.Print("proceed? [y/N] ")
	line, err := l.confirmer.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
