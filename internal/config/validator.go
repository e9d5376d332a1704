package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error listing
// every invalid value. Call it after Load.
func ValidateConfig() error {
	var errors []string

	for _, key := range []string{"run_timeout", "sweep_timeout"} {
		if viper.IsSet(key) {
			if d := duration(key); d < 0 {
				errors = append(errors, fmt.Sprintf("%s must not be negative, got: %v", key, d))
			}
		}
	}

	if viper.IsSet("trials") {
		if trials := viper.GetInt("trials"); trials < 1 {
			errors = append(errors, fmt.Sprintf("trials must be at least 1, got: %d", trials))
		}
	}

	if addr := viper.GetString("metrics_addr"); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errors = append(errors, fmt.Sprintf("metrics_addr must be host:port, got: %q", addr))
		}
	}

	switch strings.ToLower(viper.GetString("db.type")) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		errors = append(errors, fmt.Sprintf("db.type must be sqlite or postgres, got: %q", viper.GetString("db.type")))
	}

	if viper.GetString("docker.image") != "" && !strings.HasPrefix(viper.GetString("docker.workdir"), "/") {
		errors = append(errors, fmt.Sprintf("docker.workdir must be an absolute path, got: %q", viper.GetString("docker.workdir")))
	}

	for _, key := range []string{"notifications.slack.webhook_url", "notifications.discord.webhook_url"} {
		if url := viper.GetString(key); url != "" && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
			errors = append(errors, key+" must be an http(s) URL")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

// ValidateAndExit validates the configuration and exits with a non-zero code if validation fails.
func ValidateAndExit() {
	if err := ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
