// Package config loads the planner/executor configuration surface.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Execution ExecutionConfig `mapstructure:"execution"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Actions   ActionsConfig   `mapstructure:"actions"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ExecutionConfig 执行器配置
type ExecutionConfig struct {
	DryRun        bool `mapstructure:"dry_run"`
	DefaultWaitMs int  `mapstructure:"default_wait_ms"`
	MaxMacroDepth int  `mapstructure:"max_macro_depth"`
}

// BrokerConfig 文件系统消息代理配置
type BrokerConfig struct {
	Root             string `mapstructure:"root"`
	PollIntervalMs   int    `mapstructure:"poll_interval_ms"`
}

// VisionConfig 视觉导航配置
type VisionConfig struct {
	Enabled                       bool     `mapstructure:"enabled"`
	MaxIterations                 int      `mapstructure:"max_iterations"`
	IterationTimeoutS             int      `mapstructure:"iteration_timeout_s"`
	ConfidenceThreshold            float64  `mapstructure:"confidence_threshold"`
	RequireConfirmationForCritical bool     `mapstructure:"require_confirmation_for_critical"`
	CriticalKeywords               []string `mapstructure:"critical_keywords"`
	LoopDetectionThreshold         int      `mapstructure:"loop_detection_threshold"`
	LoopDetectionBufferSize        int      `mapstructure:"loop_detection_buffer_size"`
	ScreenshotQuality              int      `mapstructure:"screenshot_quality"`
	EnableAuditLog                 bool     `mapstructure:"enable_audit_log"`
	AuditLogPath                   string   `mapstructure:"audit_log_path"`
	CoordinateMargin               int      `mapstructure:"coordinate_margin"`
	CoordinateClampTolerance       int      `mapstructure:"coordinate_clamp_tolerance"`
}

// ActionsConfig 动作库启用/禁用配置
type ActionsConfig struct {
	EnabledCategories []string `mapstructure:"enabled_categories"`
	DisabledActions   []string `mapstructure:"disabled_actions"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 视觉/规划用的语言模型客户端配置
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	TimeoutS int    `mapstructure:"timeout_s"`
}

// Load 加载配置: 默认值 → 全局 ~/.deskflow/ → 项目本地 → 环境变量
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Layer 1: 全局配置 ~/.deskflow/config.yaml
	globalDir := filepath.Join(os.Getenv("HOME"), ".deskflow")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	// Layer 2: 项目本地配置 (覆盖层), 第一个找到的生效
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	// 环境变量覆盖, 如 DESKFLOW_VISION_ENABLED=false
	v.SetEnvPrefix("DESKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	// Execution 默认值
	v.SetDefault("execution.dry_run", false)
	v.SetDefault("execution.default_wait_ms", 0)
	v.SetDefault("execution.max_macro_depth", 5)

	// Broker 默认值
	v.SetDefault("broker.root", filepath.Join(os.TempDir(), "deskflow-broker"))
	v.SetDefault("broker.poll_interval_ms", 100)

	// Vision 默认值
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.max_iterations", 10)
	v.SetDefault("vision.iteration_timeout_s", 10)
	v.SetDefault("vision.confidence_threshold", 0.6)
	v.SetDefault("vision.require_confirmation_for_critical", true)
	v.SetDefault("vision.critical_keywords", []string{"delete", "format", "shutdown", "remove", "erase", "destroy", "wipe", "reset"})
	v.SetDefault("vision.loop_detection_threshold", 3)
	v.SetDefault("vision.loop_detection_buffer_size", 10)
	v.SetDefault("vision.screenshot_quality", 85)
	v.SetDefault("vision.enable_audit_log", true)
	v.SetDefault("vision.audit_log_path", filepath.Join(os.TempDir(), "deskflow-broker", "vision_audit.jsonl"))
	v.SetDefault("vision.coordinate_margin", 5)
	v.SetDefault("vision.coordinate_clamp_tolerance", 10)

	// Actions 默认值
	v.SetDefault("actions.enabled_categories", []string{"keyboard", "mouse", "window", "browser", "clipboard", "file", "screen", "timing", "vision", "system", "edit"})
	v.SetDefault("actions.disabled_actions", []string{})

	// Log 默认值
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	// LLM 默认值
	v.SetDefault("llm.provider", "openai-compatible")
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.model", "qwen-vl")
	v.SetDefault("llm.timeout_s", 60)
}
