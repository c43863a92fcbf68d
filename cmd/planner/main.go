package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/infrastructure/audit"
	"github.com/ngoclaw/deskflow/internal/infrastructure/broker"
	"github.com/ngoclaw/deskflow/internal/infrastructure/config"
	"github.com/ngoclaw/deskflow/internal/infrastructure/llmclient"
	"github.com/ngoclaw/deskflow/internal/infrastructure/logger"
	"github.com/ngoclaw/deskflow/internal/interfaces/cli"
	"github.com/ngoclaw/deskflow/internal/service/handlers"
	"github.com/ngoclaw/deskflow/internal/service/planner"
	"github.com/ngoclaw/deskflow/internal/service/registry"
	"github.com/ngoclaw/deskflow/internal/service/visionnav"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "deskflow-planner",
		Short: "deskflow planner — the interactive, LLM-driven side of the planner/executor pair",
		RunE:  run,
	}
	root.Flags().Bool("no-confirm", false, "disable critical-action confirmation prompts (unattended mode)") // 无人值守模式下危险操作一律拒绝
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("deskflow-planner v" + version)
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	noConfirm, _ := cmd.Flags().GetBool("no-confirm")

	log, err := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: cfg.Log.OutputPath})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()
	log = logger.ForProcess(log, "planner")

	width := 80

	reg := registry.New(registry.Config{
		EnabledCategories: toCategories(cfg.Actions.EnabledCategories),
		DisabledActions:   cfg.Actions.DisabledActions,
	})
	if err := handlers.RegisterAll(reg); err != nil {
		return fmt.Errorf("registering actions: %w", err)
	}

	fmt.Println(cli.RenderBanner(cli.BannerInfo{
		LLMModel:    cfg.LLM.Model,
		BrokerRoot:  cfg.Broker.Root,
		ActionCount: countActions(reg),
		VisionOn:    cfg.Vision.Enabled,
	}, width))

	brk, err := broker.New(cfg.Broker.Root, time.Duration(cfg.Broker.PollIntervalMs)*time.Millisecond, log)
	if err != nil {
		return fmt.Errorf("broker init: %w", err)
	}

	llm := llmclient.New(llmclient.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutS) * time.Second,
	}, log)
	visionAdapter := llmclient.NewVisionAdapter(llm)

	var auditSink visionnav.AuditSink
	if cfg.Vision.EnableAuditLog {
		sink, err := audit.Open(cfg.Vision.AuditLogPath)
		if err != nil {
			log.Warn("failed to open vision audit log, continuing without it", zap.Error(err))
		} else {
			auditSink = sink
			defer sink.Close()
		}
	}

	confirmer := planner.NewStdinConfirmer(bufio.NewReader(os.Stdin), cli.NewRenderer(width), noConfirm)

	navigator := visionnav.New(brk, visionAdapter, confirmer, auditSink, log, visionnav.Config{
		MaxIterations:                  cfg.Vision.MaxIterations,
		ConfidenceThreshold:            cfg.Vision.ConfidenceThreshold,
		RequireConfirmationForCritical: cfg.Vision.RequireConfirmationForCritical,
		CriticalKeywords:               cfg.Vision.CriticalKeywords,
		LoopDetectionThreshold:         cfg.Vision.LoopDetectionThreshold,
		LoopDetectionBufferSize:        cfg.Vision.LoopDetectionBufferSize,
		CoordinateMargin:               cfg.Vision.CoordinateMargin,
		CoordinateClampTolerance:       cfg.Vision.CoordinateClampTolerance,
		StateTimeoutMs:                 cfg.Vision.IterationTimeoutS * 1000,
		ActionTimeoutMs:                cfg.Vision.IterationTimeoutS * 1000,
	})

	loopCfg := planner.DefaultConfig()
	loopCfg.EnabledCategories = toCategories(cfg.Actions.EnabledCategories)
	loopCfg.RequireConfirmation = !noConfirm
	loopCfg.TickPollMs = cfg.Broker.PollIntervalMs

	pl := planner.New(brk, reg, llm, navigator, confirmer, cli.NewRenderer(width), log, loopCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	pl.Run(ctx)
	log.Info("planner stopped")
	return nil
}

func toCategories(names []string) []action.Category {
	out := make([]action.Category, 0, len(names))
	for _, n := range names {
		out = append(out, action.Category(n))
	}
	return out
}

func countActions(reg action.Registry) int {
	all := []action.Category{
		action.CategoryKeyboard, action.CategoryMouse, action.CategoryWindow,
		action.CategoryBrowser, action.CategoryClipboard, action.CategoryFile,
		action.CategoryScreen, action.CategoryTiming, action.CategoryVision,
		action.CategorySystem, action.CategoryEdit, action.CategoryMacro,
	}
	n := 0
	for _, cat := range all {
		n += len(reg.ListByCategory(cat))
	}
	return n
}
