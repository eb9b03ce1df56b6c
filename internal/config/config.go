package config

import (
	"fmt"
	"os"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/scoring"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		PublicURL      string   `yaml:"public_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Questions struct {
		File  string `yaml:"file"`
		TTL   string `yaml:"ttl"`
		MinID int    `yaml:"min_id"`
		MaxID int    `yaml:"max_id"`
	} `yaml:"questions"`
	Game Game `yaml:"game"`
}

// Game tunes room pacing and scoring. Zero values fall back to the defaults.
type Game struct {
	QuestionTime     int    `yaml:"question_time"`
	TickInterval     string `yaml:"tick_interval"`
	CorrectScore     *int   `yaml:"correct_score"`
	WrongScore       *int   `yaml:"wrong_score"`
	SpeedBonuses     []int  `yaml:"speed_bonuses"`
	GracePeriod      string `yaml:"grace_period"`
	AutoAdvanceDelay string `yaml:"auto_advance_delay"`
	RoomIdleTimeout  string `yaml:"room_idle_timeout"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Settings converts the game section into service settings.
func (c Config) Settings() (app.Settings, error) {
	s := app.DefaultSettings()
	g := c.Game

	if g.QuestionTime < 0 {
		return s, fmt.Errorf("game.question_time must not be negative, got %d", g.QuestionTime)
	}
	if g.QuestionTime > 0 {
		s.QuestionTicks = g.QuestionTime
	}
	s.TickInterval = TTLDuration(g.TickInterval, s.TickInterval)
	if s.TickInterval <= 0 {
		return s, fmt.Errorf("game.tick_interval must be positive")
	}

	rules := scoring.DefaultRules()
	if g.CorrectScore != nil {
		rules.Correct = *g.CorrectScore
	}
	if g.WrongScore != nil {
		rules.Wrong = *g.WrongScore
	}
	if g.SpeedBonuses != nil {
		rules.SpeedBonuses = g.SpeedBonuses
	}
	s.Rules = rules

	s.GracePeriod = TTLDuration(g.GracePeriod, s.GracePeriod)
	s.AutoAdvanceDelay = TTLDuration(g.AutoAdvanceDelay, s.AutoAdvanceDelay)
	s.RoomIdleTimeout = TTLDuration(g.RoomIdleTimeout, s.RoomIdleTimeout)
	s.Selection = app.QuestionSelection{MinID: c.Questions.MinID, MaxID: c.Questions.MaxID}
	if s.Selection.MaxID < s.Selection.MinID && s.Selection.MaxID != 0 {
		return s, fmt.Errorf("questions.max_id %d is below min_id %d", s.Selection.MaxID, s.Selection.MinID)
	}
	return s, nil
}
