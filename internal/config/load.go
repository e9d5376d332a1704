package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "BENCHMATRIX"

// SetDefaults registers the default value of every configuration key.
func SetDefaults() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")
	viper.SetDefault("bin_dir", "./bin")
	viper.SetDefault("run_timeout", "0s")
	viper.SetDefault("sweep_timeout", "0s")
	viper.SetDefault("ignore_exit_code", false)
	viper.SetDefault("trials", 1)
	viper.SetDefault("metrics_addr", "")

	viper.SetDefault("db.type", "sqlite")
	viper.SetDefault("db.dsn", ".benchmatrix.db")

	viper.SetDefault("docker.image", "")
	viper.SetDefault("docker.workdir", "/work")

	viper.SetDefault("notifications.slack.webhook_url", "")
	viper.SetDefault("notifications.discord.webhook_url", "")
}

// Load initializes the configuration from file and environment variables.
// A missing config file is not an error; an unreadable one is.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	return nil
}

// Settings is a typed snapshot of the loaded configuration.
type Settings struct {
	Verbose        bool
	LogFile        string
	BinDir         string
	RunTimeout     time.Duration
	SweepTimeout   time.Duration
	IgnoreExitCode bool
	Trials         int
	MetricsAddr    string

	DBType string
	DBDSN  string

	DockerImage   string
	DockerWorkdir string

	SlackWebhookURL   string
	DiscordWebhookURL string
}

// Current reads the settings from viper.
func Current() Settings {
	return Settings{
		Verbose:           viper.GetBool("verbose"),
		LogFile:           viper.GetString("log_file"),
		BinDir:            viper.GetString("bin_dir"),
		RunTimeout:        duration("run_timeout"),
		SweepTimeout:      duration("sweep_timeout"),
		IgnoreExitCode:    viper.GetBool("ignore_exit_code"),
		Trials:            viper.GetInt("trials"),
		MetricsAddr:       viper.GetString("metrics_addr"),
		DBType:            viper.GetString("db.type"),
		DBDSN:             viper.GetString("db.dsn"),
		DockerImage:       viper.GetString("docker.image"),
		DockerWorkdir:     viper.GetString("docker.workdir"),
		SlackWebhookURL:   viper.GetString("notifications.slack.webhook_url"),
		DiscordWebhookURL: viper.GetString("notifications.discord.webhook_url"),
	}
}

// duration accepts either a Go duration string or a plain number of seconds.
func duration(key string) time.Duration {
	switch v := viper.Get(key).(type) {
	case nil:
		return 0
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	secs, err := cast.ToFloat64E(viper.Get(key))
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
