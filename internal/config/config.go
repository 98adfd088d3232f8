package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken          string        `envconfig:"BOT_TOKEN" required:"true"`
	NotifyChatID      int64         `envconfig:"NOTIFY_CHAT_ID" required:"true"` // where alerts go
	UsersFile         string        `envconfig:"USERS_FILE" default:"./data/users.yaml"`
	NotificationsPath string        `envconfig:"NOTIFICATIONS_PATH" default:"./data/notifications.json"`
	TokensPath        string        `envconfig:"TOKENS_PATH" default:"./data/tokens.json"`
	Module            string        `envconfig:"MODULE" default:"exercise"`
	TZ                string        `envconfig:"TZ_NAME" default:"Local"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	Workers           int           `envconfig:"SCHEDULER_WORKERS" default:"1"`
	DispatchRPS       float64       `envconfig:"DISPATCH_RPS" default:"1"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
