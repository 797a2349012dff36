package config

import (
	"fmt"
	"runtime"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all orchestrator settings, populated from the environment.
type Config struct {
	// ListenAddr is the local address of the deep-link delivery API.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8420"`

	// Account lookup API.
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:6001"`
	APIToken   string `envconfig:"API_TOKEN"`

	// Launcher selects how browser processes are started: "local" launches
	// the installed Chrome executable, "docker" runs a containerized Chrome
	// and attaches over CDP.
	Launcher string `envconfig:"BROWSER_LAUNCHER" default:"local"`
	Headless bool   `envconfig:"BROWSER_HEADLESS" default:"false"`

	// Platform-specific Chrome locations, overriding the built-in defaults.
	ChromePathWin   string `envconfig:"CHROME_PATH_WIN"`
	ChromePathMac   string `envconfig:"CHROME_PATH_MAC"`
	ChromePathLinux string `envconfig:"CHROME_PATH_LINUX"`

	// StateDir is where per-account session-state documents live.
	StateDir string `envconfig:"STATE_DIR" default:"./storage/state"`
	// DiagnosticsDir receives failure screenshots.
	DiagnosticsDir string `envconfig:"DIAGNOSTICS_DIR" default:"./storage/diagnostics"`

	// MaxConcurrentAccounts caps how many accounts may hold a live browser
	// at once.
	MaxConcurrentAccounts int `envconfig:"MAX_CONCURRENT_ACCOUNTS" default:"10"`

	// Activation requests allowed per hour per account, with a small burst.
	ActivationsPerHour int `envconfig:"ACTIVATIONS_PER_HOUR" default:"100"`
	ActivationBurst    int `envconfig:"ACTIVATION_BURST" default:"10"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("zappedin", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Launcher != "local" && cfg.Launcher != "docker" {
		return nil, fmt.Errorf("unsupported launcher %q", cfg.Launcher)
	}
	if cfg.MaxConcurrentAccounts < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_ACCOUNTS must be at least 1")
	}

	return &cfg, nil
}

// ChromePath resolves the Chrome executable for the current platform.
func (c *Config) ChromePath() string {
	switch runtime.GOOS {
	case "windows":
		if c.ChromePathWin != "" {
			return c.ChromePathWin
		}
		return `C:\Program Files\Google\Chrome\Application\chrome.exe`
	case "darwin":
		if c.ChromePathMac != "" {
			return c.ChromePathMac
		}
		return "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	default:
		if c.ChromePathLinux != "" {
			return c.ChromePathLinux
		}
		return "google-chrome"
	}
}
