package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"live-quiz-service/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultConfigPath = "config/config.yaml"

// options are the flags shared by every subcommand. Each one can also be set through a QUIZ_*
// environment variable, e.g. QUIZ_POSTGRES_URL.
type options struct {
	configPath    string
	logLevel      string
	port          string
	redisAddr     string
	postgresURL   string
	natsURL       string
	questionsFile string
}

// Execute runs the CLI.
func Execute() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "could not load .env file: %v\n", err)
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "quiz-service",
		Short: "Host-driven live quiz rooms over WebSocket",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindEnv(v, cmd.Flags())
		},
		SilenceUsage: true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "path to YAML config (env: QUIZ_CONFIG)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level (env: QUIZ_LOG_LEVEL)")
	fs.StringVar(&opts.port, "port", "", "port to listen on, overrides server.port (env: QUIZ_PORT)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address, overrides redis.addr (env: QUIZ_REDIS_ADDR)")
	fs.StringVar(&opts.postgresURL, "postgres-url", "", "postgres DSN, overrides postgres.url (env: QUIZ_POSTGRES_URL)")
	fs.StringVar(&opts.natsURL, "nats-url", "", "NATS URL for the event mirror, overrides nats.url (env: QUIZ_NATS_URL)")
	fs.StringVar(&opts.questionsFile, "questions-file", "", "question bank file, overrides questions.file (env: QUIZ_QUESTIONS_FILE)")

	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	return cmd
}

// bindEnv fills flags that were not given on the command line from the environment.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("flag --%s from environment: %w", f.Name, err)
			}
		}
	})
	return firstErr
}

// loadConfig reads the YAML file, applies flag overrides and configures logging. A missing file at
// the default path is not an error: every setting has a default.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if !os.IsNotExist(err) || opts.configPath != defaultConfigPath {
			return cfg, err
		}
		cfg = config.Config{}
	}

	override(&cfg.Log.Level, opts.logLevel)
	override(&cfg.Server.Port, opts.port)
	override(&cfg.Redis.Addr, opts.redisAddr)
	override(&cfg.Postgres.URL, opts.postgresURL)
	override(&cfg.NATS.URL, opts.natsURL)
	override(&cfg.Questions.File, opts.questionsFile)
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}

	setupLogging(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("path", opts.configPath).Msg("config file not found, using defaults")
	}
	return cfg, nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
