package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/utils"
)

// 运行模式
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
	ModeTest        = "test"
)

var (
	mu     sync.RWMutex
	config map[string]interface{}
)

type Global struct {
	AppName string `json:"app_name"`
	Mode    string `json:"mode"`
}

type Gemini struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	DefaultModel string `json:"default_model"`
	// ReadIdleTimeout 流式读取无数据的最长秒数
	ReadIdleTimeout int `json:"read_idle_timeout"`
	// RequestTimeout 非流式请求超时秒数
	RequestTimeout int `json:"request_timeout"`
}

type RateLimit struct {
	WindowMs      int    `json:"window_ms"`
	MaxRequests   int    `json:"max_requests"`
	SweepInterval int    `json:"sweep_interval"`
	Store         string `json:"store"` // memory | redis
}

type Redis struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

type Backend struct {
	URL string `json:"url"`
}

type Config struct {
	Global    Global
	Gemini    Gemini
	RateLimit RateLimit
	Redis     Redis
	Backend   Backend
	Log       logs.LoggerConfig
}

// ErrMissingAPIKey 生产模式下缺少上游密钥
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required")

// Init 读取 TOML 配置文件, 路径为空时读取环境变量 runConfig, 都为空则使用空配置
func Init(configPath string) error {
	if configPath == "" {
		configPath = os.Getenv("runConfig")
	}
	cfg := make(map[string]interface{})
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
			return fmt.Errorf("decode config %s: %w", configPath, err)
		}
	}
	mu.Lock()
	config = cfg
	mu.Unlock()
	return nil
}

// Get 返回某个配置段的 JSON 字节, 不存在时返回 nil
func Get(key string) []byte {
	mu.RLock()
	defer mu.RUnlock()
	if value, exists := config[key]; exists {
		bytes, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return bytes
	}
	return nil
}

func section[T any](key string) (T, error) {
	var zero T
	raw := Get(key)
	if raw == nil {
		return zero, nil
	}
	v, err := utils.Bytes2Struct[T](raw)
	if err != nil {
		return zero, fmt.Errorf("config section [%s]: %w", key, err)
	}
	return v, nil
}

// Load 读取配置文件、叠加环境变量并填充默认值
func Load(configPath string) (*Config, error) {
	if err := Init(configPath); err != nil {
		return nil, err
	}
	var (
		c   Config
		err error
	)
	if c.Global, err = section[Global]("global"); err != nil {
		return nil, err
	}
	if c.Gemini, err = section[Gemini]("gemini"); err != nil {
		return nil, err
	}
	if c.RateLimit, err = section[RateLimit]("ratelimit"); err != nil {
		return nil, err
	}
	if c.Redis, err = section[Redis]("redis"); err != nil {
		return nil, err
	}
	if c.Backend, err = section[Backend]("backend"); err != nil {
		return nil, err
	}
	if c.Log, err = section[logs.LoggerConfig]("log"); err != nil {
		return nil, err
	}
	// .env 不覆盖已有的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logs.Warn("load .env failed", logs.ErrorInfo(err))
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		c.Gemini.BaseURL = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Global.Mode = v
	} else if v := os.Getenv("NODE_ENV"); v != "" {
		c.Global.Mode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		if c.RateLimit.Store == "" {
			c.RateLimit.Store = "redis"
		}
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.MaxRequests = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Global.AppName == "" {
		c.Global.AppName = "script-pilot"
	}
	c.Global.Mode = strings.ToLower(c.Global.Mode)
	switch c.Global.Mode {
	case ModeDevelopment, ModeProduction, ModeTest:
	default:
		c.Global.Mode = ModeDevelopment
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Gemini.DefaultModel == "" {
		c.Gemini.DefaultModel = "gemini-2.0-flash"
	}
	if c.Gemini.ReadIdleTimeout <= 0 {
		c.Gemini.ReadIdleTimeout = 45
	}
	if c.Gemini.RequestTimeout <= 0 {
		c.Gemini.RequestTimeout = 60
	}
	if c.RateLimit.WindowMs <= 0 {
		c.RateLimit.WindowMs = 60000
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 20
	}
	if c.RateLimit.SweepInterval <= 0 {
		c.RateLimit.SweepInterval = 60
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = "memory"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = c.Global.AppName
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:5000"
	}
}

// Validate 检查必需配置: 生产模式缺少密钥返回错误, 其他模式只告警
func (c *Config) Validate() error {
	if c.Gemini.APIKey != "" {
		return nil
	}
	if c.Global.Mode == ModeProduction {
		return ErrMissingAPIKey
	}
	logs.Warn("Running with missing environment variables. Some features may not work.",
		logs.String("missing", "GEMINI_API_KEY"), logs.String("mode", c.Global.Mode))
	return nil
}
