package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		wantError bool
		errMsg    string
	}{
		{
			name: "Valid Configuration",
			setup: func() {
				viper.Set("run_timeout", "30s")
				viper.Set("trials", 3)
				viper.Set("metrics_addr", ":2112")
				viper.Set("db.type", "postgres")
			},
			wantError: false,
		},
		{
			name: "Negative Run Timeout",
			setup: func() {
				viper.Set("run_timeout", -10*time.Second)
			},
			wantError: true,
			errMsg:    "run_timeout must not be negative",
		},
		{
			name: "Negative Sweep Timeout (Int)",
			setup: func() {
				viper.Set("sweep_timeout", -10)
			},
			wantError: true,
			errMsg:    "sweep_timeout must not be negative",
		},
		{
			name: "Zero Trials",
			setup: func() {
				viper.Set("trials", 0)
			},
			wantError: true,
			errMsg:    "trials must be at least 1",
		},
		{
			name: "Bad Metrics Address",
			setup: func() {
				viper.Set("metrics_addr", "2112")
			},
			wantError: true,
			errMsg:    "metrics_addr must be host:port",
		},
		{
			name: "Unknown DB Type",
			setup: func() {
				viper.Set("db.type", "mongo")
			},
			wantError: true,
			errMsg:    "db.type must be sqlite or postgres",
		},
		{
			name: "Relative Docker Workdir",
			setup: func() {
				viper.Set("docker.image", "gcc:14")
				viper.Set("docker.workdir", "work")
			},
			wantError: true,
			errMsg:    "docker.workdir must be an absolute path",
		},
		{
			name: "Multiple Errors",
			setup: func() {
				viper.Set("trials", -5)
				viper.Set("db.type", "mongo")
			},
			wantError: true,
			errMsg:    "trials must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			err := ValidateConfig()
			if (err != nil) != tt.wantError {
				t.Fatalf("ValidateConfig() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateConfig() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateConfig_CollectsAllErrors(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("trials", 0)
	viper.Set("db.type", "mongo")

	err := ValidateConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "trials") || !strings.Contains(err.Error(), "db.type") {
		t.Errorf("expected both problems reported, got: %v", err)
	}
}
