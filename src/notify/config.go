package notify

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WebhookURL string        `envconfig:"LOG_WEBHOOK_URL"` // empty disables the webhook
	Timeout    time.Duration `envconfig:"LOG_WEBHOOK_TIMEOUT" default:"5s"`
	Retries    int           `envconfig:"LOG_WEBHOOK_RETRIES" default:"2"`
	QueueSize  int           `envconfig:"LOG_WEBHOOK_QUEUE" default:"100"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
