package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func TestBindEnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("QUIZ_REDIS_ADDR", "cache:6379")
	t.Setenv("QUIZ_PORT", "9999")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	redisAddr := fs.String("redis-addr", "", "")
	port := fs.String("port", "", "")
	if err := fs.Parse([]string{"--port", "7000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := bindEnv(newEnvViper(), fs); err != nil {
		t.Fatalf("bind env: %v", err)
	}
	if *redisAddr != "cache:6379" {
		t.Fatalf("expected env value, got %q", *redisAddr)
	}
	if *port != "7000" {
		t.Fatalf("explicit flag must win over env, got %q", *port)
	}
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  port: \"8081\"\nredis:\n  addr: yaml:6379\nquestions:\n  file: bank.yaml\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := loadConfig(&options{configPath: path, redisAddr: "flag:6379"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8081" || cfg.Redis.Addr != "flag:6379" || cfg.Questions.File != "bank.yaml" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	// the default path is optional
	cfg, err := loadConfig(&options{configPath: defaultConfigPath})
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}

	// an explicit path is not
	if _, err := loadConfig(&options{configPath: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatalf("expected an error for a missing explicit config")
	}
}

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "import"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("missing subcommand %s: %v", name, err)
		}
	}
	if cmd.PersistentFlags().Lookup("postgres-url") == nil {
		t.Fatalf("expected persistent postgres-url flag")
	}
}
