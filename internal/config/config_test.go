package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{"returns default when not set", "TEST_KEY_UNSET", "default", "", "default"},
		{"returns env value when set", "TEST_KEY_SET", "default", "custom", "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{"returns default when not set", "TEST_INT_UNSET", 100, "", 100},
		{"parses valid int", "TEST_INT_VALID", 100, "42", 42},
		{"returns default on invalid int", "TEST_INT_INVALID", 100, "not-a-number", 100},
		{"parses negative int", "TEST_INT_NEG", 100, "-5", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{"returns default when not set", "TEST_BOOL_UNSET", true, "", true},
		{"parses true", "TEST_BOOL_TRUE", false, "true", true},
		{"parses false", "TEST_BOOL_FALSE", true, "false", false},
		{"parses 1", "TEST_BOOL_ONE", false, "1", true},
		{"returns default on invalid bool", "TEST_BOOL_INVALID", true, "not-a-bool", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Errorf("StorageDriver = %q, want sqlite", cfg.StorageDriver)
	}
	if cfg.QueueEnabled {
		t.Error("QueueEnabled = true, want false")
	}
	if cfg.QueueWorkers != 3 {
		t.Errorf("QueueWorkers = %d, want 3", cfg.QueueWorkers)
	}
	if cfg.LLMProvider != "claude" {
		t.Errorf("LLMProvider = %q, want claude", cfg.LLMProvider)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	os.Setenv("STORAGE_DRIVER", "mongodb")
	defer os.Unsetenv("STORAGE_DRIVER")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with unknown STORAGE_DRIVER should return error")
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("STORAGE_DRIVER", "postgres")
	os.Setenv("QUEUE_ENABLED", "true")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("STORAGE_DRIVER")
		os.Unsetenv("QUEUE_ENABLED")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.StorageDriver != "postgres" {
		t.Errorf("StorageDriver = %q, want postgres", cfg.StorageDriver)
	}
	if !cfg.QueueEnabled {
		t.Error("QueueEnabled = false, want true")
	}
}
