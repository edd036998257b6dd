package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/dispatch"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	development, err := parseBoolEnv("LOG_DEVELOPMENT", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Assistant: assistant,
		Log: LogConfig{
			Level:       getEnvOrDefault("LOG_LEVEL", "info"),
			Development: development,
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址与跨域来源。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("ASSISTANT_CORS_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// AssistantConfig 描述助手回复引擎的模拟延迟、失败率与内容目录。
type AssistantConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	Seed        *uint64
	CatalogPath string
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level       string
	Development bool
}

// LoadCatalog 读取自定义目录文件，未配置时使用内置目录。
func (c AssistantConfig) LoadCatalog() (*catalog.Catalog, error) {
	if c.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(c.CatalogPath)
}

func loadAssistantConfig() (AssistantConfig, error) {
	minDelay := dispatch.DefaultMinDelay
	if ms, err := parseOptionalIntEnv("ASSISTANT_DELAY_MIN_MS"); err != nil {
		return AssistantConfig{}, err
	} else if ms != nil {
		minDelay = time.Duration(*ms) * time.Millisecond
	}

	maxDelay := dispatch.DefaultMaxDelay
	if ms, err := parseOptionalIntEnv("ASSISTANT_DELAY_MAX_MS"); err != nil {
		return AssistantConfig{}, err
	} else if ms != nil {
		maxDelay = time.Duration(*ms) * time.Millisecond
	}

	if minDelay < 0 || maxDelay < minDelay {
		return AssistantConfig{}, fmt.Errorf("invalid assistant delay range: min=%s max=%s", minDelay, maxDelay)
	}

	failureRate := 0.0
	if rate, err := parseOptionalFloatEnv("ASSISTANT_FAILURE_RATE"); err != nil {
		return AssistantConfig{}, err
	} else if rate != nil {
		if *rate < 0 || *rate > 1 {
			return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_FAILURE_RATE value %v: must be within [0, 1]", *rate)
		}
		failureRate = *rate
	}

	seed, err := parseOptionalUint64Env("ASSISTANT_RANDOM_SEED")
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		MinDelay:    minDelay,
		MaxDelay:    maxDelay,
		FailureRate: failureRate,
		Seed:        seed,
		CatalogPath: strings.TrimSpace(os.Getenv("ASSISTANT_CATALOG_PATH")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalUint64Env(key string) (*uint64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
