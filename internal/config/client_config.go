package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ClientConfig struct {
	Environment string
	Logging     LoggingConfig

	ServerURL     string
	TargetURL     string
	CheckInterval time.Duration
	LogDir        string

	Browser BrowserConfig
	Login   LoginConfig

	FormSelector         string
	NotificationsEnabled bool
}

type BrowserConfig struct {
	// Driver is "playwright" or "rod".
	Driver         string
	Headless       bool
	ExecutablePath string
	ReconnectDelay time.Duration
}

type LoginConfig struct {
	Marker   string
	Username string
	Password string
}

// LoadClientConfig reads .env (when present) and the process environment for the automation client
func LoadClientConfig() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		Environment: getEnv("ENVIRONMENT", "development"),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		ServerURL:     strings.TrimRight(getEnv("SERVER_URL", "http://localhost:3000"), "/"),
		TargetURL:     getEnv("TARGET_URL", "https://localhost:47990/pin#PIN"),
		CheckInterval: getEnvDuration("CHECK_INTERVAL", 5*time.Second),
		LogDir:        getEnv("LOG_DIR", "logs"),
		Browser: BrowserConfig{
			Driver:         strings.ToLower(getEnv("BROWSER_DRIVER", "playwright")),
			Headless:       getEnvBool("HEADLESS", false),
			ExecutablePath: getEnv("CHROME_PATH", ""),
			ReconnectDelay: getEnvDuration("RECONNECT_DELAY", time.Second),
		},
		Login: LoginConfig{
			Marker:   getEnv("LOGIN_MARKER", "Welcome to Apollo"),
			Username: getEnv("LOGIN_USERNAME", "admin"),
			Password: getEnv("LOGIN_PASSWORD", "admin"),
		},
		FormSelector:         getEnv("FORM_SELECTOR", "form, .card-body"),
		NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED", true),
	}
}

// LogFile is the daily log file inside LogDir
func (c *ClientConfig) LogFile(now time.Time) string {
	return filepath.Join(c.LogDir, "pin-relay-"+now.Format("2006-01-02")+".log")
}
