package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
)

var logger = logging.Component("config")

const (
	AppName = "lyrics-server"

	DefaultListenAddr        = ":8000"
	DefaultScrapeTimeout     = 10 * time.Second
	DefaultFetchTimeout      = 5 * time.Minute
	DefaultAlignTimeout      = 5 * time.Minute
	DefaultTranscribeTimeout = 10 * time.Minute
	DefaultAITimeout         = 30 * time.Second

	BackendStableTS = "stable-ts"
	BackendTencent  = "tencent"
)

func getDefaultDataDir() string {
	// 优先使用 XDG_DATA_HOME 环境变量
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, AppName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 获取不到用户主目录时回退到当前目录
		return "downloads"
	}

	return filepath.Join(homeDir, ".local", "share", AppName)
}

func getDefaultRuntimeDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir
	}
	return os.TempDir()
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		ListenAddr    string `toml:"listen_addr"`
		AudioDir      string `toml:"audio_dir"`
		LyricsDir     string `toml:"lyrics_dir"`
		LockPath      string `toml:"lock_path"`
		WebRoot       string `toml:"web_root"`
		PublicBaseURL string `toml:"public_base_url"`
	} `toml:"app"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Scrape struct {
		Sources           []string `toml:"sources"`
		Timeout           string   `toml:"timeout"`
		UserAgent         string   `toml:"user_agent"`
		RequestsPerSecond float64  `toml:"requests_per_second"`
	} `toml:"scrape"`

	Fetcher struct {
		Timeout      string `toml:"timeout"`
		AudioQuality string `toml:"audio_quality"`
	} `toml:"fetcher"`

	Transcriber struct {
		Backend           string   `toml:"backend"`
		Command           string   `toml:"command"`
		Model             string   `toml:"model"`
		Language          string   `toml:"language"`
		ExtraArgs         []string `toml:"extra_args"`
		AlignTimeout      string   `toml:"align_timeout"`
		TranscribeTimeout string   `toml:"transcribe_timeout"`
	} `toml:"transcriber"`

	Tencent struct {
		SecretID     string `toml:"secret_id"`
		SecretKey    string `toml:"secret_key"`
		Engine       string `toml:"engine"`
		PollInterval string `toml:"poll_interval"`
	} `toml:"tencent"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		Model      string `toml:"model"`
		BaseURL    string `toml:"base_url"` // for OpenAI
		Timeout    string `toml:"timeout"`
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		HashKey  string `toml:"hash_key"`
	} `toml:"redis"`
}

// AppConfig 应用配置
type AppConfig struct {
	ListenAddr    string
	AudioDir      string
	LyricsDir     string
	LockPath      string
	WebRoot       string
	PublicBaseURL string
}

// LogConfig 日志配置
type LogConfig struct {
	Level string
	// Format is "console", "json" or "" (console on a terminal, JSON otherwise).
	Format string
}

// ScrapeConfig 歌词站点抓取配置
type ScrapeConfig struct {
	Sources           []string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
}

// FetcherConfig 音频下载配置
type FetcherConfig struct {
	Timeout      time.Duration
	AudioQuality string
}

// TranscriberConfig 语音识别配置
type TranscriberConfig struct {
	Backend           string
	Command           string
	Model             string
	Language          string
	ExtraArgs         []string
	AlignTimeout      time.Duration
	TranscribeTimeout time.Duration
}

// TencentConfig 腾讯云配置
type TencentConfig struct {
	SecretID     string
	SecretKey    string
	Engine       string
	PollInterval time.Duration
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	Model      string
	BaseURL    string
	// 单次请求的超时
	Timeout time.Duration
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	HashKey  string
}

// Config 主配置结构
type Config struct {
	App         AppConfig
	Log         LogConfig
	Scrape      ScrapeConfig
	Fetcher     FetcherConfig
	Transcriber TranscriberConfig
	Tencent     TencentConfig
	AI          AIConfig
	Redis       RedisConfig
}

// DefaultPath 获取配置文件路径
func DefaultPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName, "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", AppName, "config.toml")
}

// Default 返回全部默认值
func Default() *Config {
	dataDir := getDefaultDataDir()
	return &Config{
		App: AppConfig{
			ListenAddr: DefaultListenAddr,
			AudioDir:   filepath.Join(dataDir, "audio"),
			LyricsDir:  filepath.Join(dataDir, "lyrics"),
			LockPath:   filepath.Join(getDefaultRuntimeDir(), AppName+".lock"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Scrape: ScrapeConfig{
			Timeout: DefaultScrapeTimeout,
		},
		Fetcher: FetcherConfig{
			Timeout:      DefaultFetchTimeout,
			AudioQuality: "0",
		},
		Transcriber: TranscriberConfig{
			Backend:           BackendStableTS,
			AlignTimeout:      DefaultAlignTimeout,
			TranscribeTimeout: DefaultTranscribeTimeout,
		},
		AI: AIConfig{
			ModuleName: "gemini",
			Timeout:    DefaultAITimeout,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			HashKey: "lyrics:titles",
		},
	}
}

// Load reads path, or the default location when path is empty. A missing file
// at the default location is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		logger.Info().Str("path", path).Msg("Config file not found, using defaults")
		return config, nil
	}

	var tomlConfig TomlConfig
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.apply(&tomlConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("Loaded config")
	return config, nil
}

// apply 用TOML中已设置的字段覆盖默认值
func (c *Config) apply(t *TomlConfig) error {
	setString(&c.App.ListenAddr, t.App.ListenAddr)
	setString(&c.App.AudioDir, t.App.AudioDir)
	setString(&c.App.LyricsDir, t.App.LyricsDir)
	setString(&c.App.LockPath, t.App.LockPath)
	setString(&c.App.WebRoot, t.App.WebRoot)
	setString(&c.App.PublicBaseURL, t.App.PublicBaseURL)

	setString(&c.Log.Level, t.Log.Level)
	setString(&c.Log.Format, t.Log.Format)

	if len(t.Scrape.Sources) > 0 {
		c.Scrape.Sources = t.Scrape.Sources
	}
	setString(&c.Scrape.UserAgent, t.Scrape.UserAgent)
	if t.Scrape.RequestsPerSecond > 0 {
		c.Scrape.RequestsPerSecond = t.Scrape.RequestsPerSecond
	}

	setString(&c.Fetcher.AudioQuality, t.Fetcher.AudioQuality)

	setString(&c.Transcriber.Backend, t.Transcriber.Backend)
	setString(&c.Transcriber.Command, t.Transcriber.Command)
	setString(&c.Transcriber.Model, t.Transcriber.Model)
	setString(&c.Transcriber.Language, t.Transcriber.Language)
	if len(t.Transcriber.ExtraArgs) > 0 {
		c.Transcriber.ExtraArgs = t.Transcriber.ExtraArgs
	}

	setString(&c.Tencent.SecretID, t.Tencent.SecretID)
	setString(&c.Tencent.SecretKey, t.Tencent.SecretKey)
	setString(&c.Tencent.Engine, t.Tencent.Engine)

	setString(&c.AI.ModuleName, t.AI.ModuleName)
	setString(&c.AI.APIKey, t.AI.APIKey)
	setString(&c.AI.Model, t.AI.Model)
	setString(&c.AI.BaseURL, t.AI.BaseURL)

	c.Redis.Enabled = t.Redis.Enabled
	setString(&c.Redis.Addr, t.Redis.Addr)
	setString(&c.Redis.Password, t.Redis.Password)
	setString(&c.Redis.HashKey, t.Redis.HashKey)
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"scrape.timeout", t.Scrape.Timeout, &c.Scrape.Timeout},
		{"fetcher.timeout", t.Fetcher.Timeout, &c.Fetcher.Timeout},
		{"transcriber.align_timeout", t.Transcriber.AlignTimeout, &c.Transcriber.AlignTimeout},
		{"transcriber.transcribe_timeout", t.Transcriber.TranscribeTimeout, &c.Transcriber.TranscribeTimeout},
		{"tencent.poll_interval", t.Tencent.PollInterval, &c.Tencent.PollInterval},
		{"ai.timeout", t.AI.Timeout, &c.AI.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.value)
		}
		*d.dst = parsed
	}

	return c.Validate()
}

// Validate 检查配置之间的约束
func (c *Config) Validate() error {
	switch c.Transcriber.Backend {
	case BackendStableTS:
	case BackendTencent:
		if c.Tencent.SecretID == "" || c.Tencent.SecretKey == "" {
			return fmt.Errorf("transcriber.backend = %q requires tencent.secret_id and tencent.secret_key", BackendTencent)
		}
	default:
		return fmt.Errorf("unknown transcriber.backend %q", c.Transcriber.Backend)
	}

	switch c.AI.ModuleName {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown ai.module_name %q", c.AI.ModuleName)
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}

	if c.App.AudioDir == "" || c.App.LyricsDir == "" {
		return fmt.Errorf("app.audio_dir and app.lyrics_dir must not be empty")
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
