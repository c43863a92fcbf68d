package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/deskflow/internal/domain/action"
	"github.com/ngoclaw/deskflow/internal/infrastructure/broker"
	"github.com/ngoclaw/deskflow/internal/infrastructure/config"
	"github.com/ngoclaw/deskflow/internal/infrastructure/driver"
	"github.com/ngoclaw/deskflow/internal/infrastructure/logger"
	"github.com/ngoclaw/deskflow/internal/service/executor"
	"github.com/ngoclaw/deskflow/internal/service/executorloop"
	"github.com/ngoclaw/deskflow/internal/service/handlers"
	"github.com/ngoclaw/deskflow/internal/service/registry"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "deskflow-executor",
		Short: "deskflow executor — the OS actuation side of the planner/executor pair",
		RunE:  run,
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("deskflow-executor v" + version)
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

	log, err := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: cfg.Log.OutputPath})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()
	log = logger.ForProcess(log, "executor")
	log.Info("starting executor", zap.String("version", version), zap.String("broker_root", cfg.Broker.Root))

	reg := registry.New(registry.Config{
		EnabledCategories: toCategories(cfg.Actions.EnabledCategories),
		DisabledActions:   cfg.Actions.DisabledActions,
	})
	if err := handlers.RegisterAll(reg); err != nil {
		return fmt.Errorf("registering actions: %w", err)
	}

	drv := driver.New(log, 1920, 1080)
	mouse := driver.NewSmoothMouse()

	brk, err := broker.New(cfg.Broker.Root, time.Duration(cfg.Broker.PollIntervalMs)*time.Millisecond, log)
	if err != nil {
		return fmt.Errorf("broker init: %w", err)
	}
	reg.Inject(drv, brk, mouse)

	exec := executor.New(reg, log, actionLogSink{log: log}, executor.Config{
		DryRun:        cfg.Execution.DryRun,
		MaxMacroDepth: cfg.Execution.MaxMacroDepth,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		// 必须先 Stop() 再 cancel()，让当前协议以 stopped 结束，而不是被直接杀死。
		exec.Stop()
		cancel()
	}()

	loop := executorloop.New(brk, exec, log, executorloop.Config{PollIntervalMs: cfg.Broker.PollIntervalMs})
	loop.Run(ctx)

	log.Info("executor stopped")
	return nil
}

func toCategories(names []string) []action.Category {
	out := make([]action.Category, 0, len(names))
	for _, n := range names {
		out = append(out, action.Category(n))
	}
	return out
}

// actionLogSink bridges executor.LogSink to structured logging (spec §4.2.4).
type actionLogSink struct {
	log *zap.Logger
}

func (s actionLogSink) LogAction(entry executor.ActionLogEntry) {
	s.log.Debug("action completed",
		zap.Int("index", entry.Index),
		zap.String("name", entry.Name),
		zap.String("outcome", entry.Outcome),
		zap.Int64("duration_ms", entry.DurationMs),
	)
}
