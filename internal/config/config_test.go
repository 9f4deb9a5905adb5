package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("accessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.SignupCodeTTL != 24*time.Hour {
		t.Fatalf("signupCodeTTL = %v, want 24h", cfg.Auth.SignupCodeTTL)
	}
	if cfg.Auth.LoginCodeTTL != 10*time.Minute {
		t.Fatalf("loginCodeTTL = %v, want 10m", cfg.Auth.LoginCodeTTL)
	}
	if cfg.Auth.SignupSessionTTL != 30*time.Minute {
		t.Fatalf("signupSessionTTL = %v, want 30m", cfg.Auth.SignupSessionTTL)
	}
	if cfg.Database.Path == "" {
		t.Fatal("database path default not applied")
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	if _, err := Load(writeConfig(t, `server: {port: 9090}`)); err == nil {
		t.Fatal("Load() accepted a config without a JWT secret")
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	if _, err := Load(writeConfig(t, "auth:\n  jwt_secret: \"short\"\n")); err == nil {
		t.Fatal("Load() accepted a JWT secret under 32 characters")
	}
}

func TestLoadEnvOverridesSecret(t *testing.T) {
	t.Setenv("HIDDO_JWT_SECRET", "ffffffffffffffffffffffffffffffff")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "ffffffffffffffffffffffffffffffff" {
		t.Fatalf("jwtSecret = %q, env override not applied", cfg.Auth.JWTSecret)
	}
}

func TestLoadRequiresSMTPPortWithHost(t *testing.T) {
	content := minimalConfig + `
email:
  smtp:
    host: smtp.example.com
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("Load() accepted an SMTP host without a port")
	}
}

func TestAddr(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"server:\n  host: 127.0.0.1\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:9000")
	}
}
