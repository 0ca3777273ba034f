package cleanuppreferences

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HiddenPrefs        []string `envconfig:"HIDDEN_PREFS"`
	DefaultUserOptions []string `envconfig:"DEFAULT_USER_OPTIONS" default:"skin,language,timecorrection,editfont,rows,cols,watchdefault,enotifwatchlistpages,gender"`
	BatchSize          int      `envconfig:"BATCH_SIZE" default:"50"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
