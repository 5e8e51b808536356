package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"trivia-engine/internal/app"
	"trivia-engine/internal/retry"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
		// Dir holds <quizID>.yaml files used when Postgres is not configured.
		Dir string `yaml:"dir"`
	} `yaml:"quiz"`
	Engine   EngineConfig `yaml:"engine"`
	Retry    RetryConfig  `yaml:"retry"`
	Telegram struct {
		Token          string `yaml:"token"`
		ResultsChannel string `yaml:"results_channel"`
		Debug          bool   `yaml:"debug"`
		Workers        int    `yaml:"workers"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// EngineConfig mirrors app.Options; durations are Go duration strings.
type EngineConfig struct {
	MaxConcurrent    int    `yaml:"max_concurrent"`
	Cooldown         string `yaml:"cooldown"`
	DefaultTimer     string `yaml:"default_timer"`
	MinTimer         string `yaml:"min_timer"`
	MaxTimer         string `yaml:"max_timer"`
	AdvanceDelay     string `yaml:"advance_delay"`
	ManualAdvance    bool   `yaml:"manual_advance"`
	IdleTimeout      string `yaml:"idle_timeout"`
	AnswerCooldown   string `yaml:"answer_cooldown"`
	AnswerGap        string `yaml:"answer_gap"`
	StartPause       string `yaml:"start_pause"`
	RevealPause      string `yaml:"reveal_pause"`
	CountdownEvery   string `yaml:"countdown_every"`
	RegistrationTick string `yaml:"registration_tick"`
	FinalCountdown   string `yaml:"final_countdown"`
	GroupCooldown    *bool  `yaml:"group_cooldown"`
	BroadcastLimit   int    `yaml:"broadcast_limit"`
	AllowRetake      bool   `yaml:"allow_retake"`
	RetainFor        string `yaml:"retain_for"`
	SweepInterval    string `yaml:"sweep_interval"`
}

type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	Factor      float64 `yaml:"factor"`
	MaxDelay    string  `yaml:"max_delay"`
}

// Load reads YAML config from path and applies environment overrides. A
// missing file is not an error; the service then runs on env and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.Token,
		"RESULTS_CHANNEL":    &c.Telegram.ResultsChannel,
		"POSTGRES_URL":       &c.Postgres.URL,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"QUIZ_DIR":           &c.Quiz.Dir,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
}

// Validate rejects malformed durations and negative limits.
func (c Config) Validate() error {
	durations := map[string]string{
		"redis.ttl":                c.Redis.TTL,
		"quiz.ttl":                 c.Quiz.TTL,
		"engine.cooldown":          c.Engine.Cooldown,
		"engine.default_timer":     c.Engine.DefaultTimer,
		"engine.min_timer":         c.Engine.MinTimer,
		"engine.max_timer":         c.Engine.MaxTimer,
		"engine.advance_delay":     c.Engine.AdvanceDelay,
		"engine.idle_timeout":      c.Engine.IdleTimeout,
		"engine.answer_cooldown":   c.Engine.AnswerCooldown,
		"engine.answer_gap":        c.Engine.AnswerGap,
		"engine.start_pause":       c.Engine.StartPause,
		"engine.reveal_pause":      c.Engine.RevealPause,
		"engine.countdown_every":   c.Engine.CountdownEvery,
		"engine.registration_tick": c.Engine.RegistrationTick,
		"engine.final_countdown":   c.Engine.FinalCountdown,
		"engine.retain_for":        c.Engine.RetainFor,
		"engine.sweep_interval":    c.Engine.SweepInterval,
		"retry.base_delay":         c.Retry.BaseDelay,
		"retry.max_delay":          c.Retry.MaxDelay,
	}
	var errs []error
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", field))
		}
	}
	if c.Engine.MaxConcurrent < 0 {
		errs = append(errs, errors.New("engine.max_concurrent: must not be negative"))
	}
	if c.Engine.BroadcastLimit < 0 {
		errs = append(errs, errors.New("engine.broadcast_limit: must not be negative"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts: must not be negative"))
	}
	if c.Retry.Factor != 0 && c.Retry.Factor < 1 {
		errs = append(errs, errors.New("retry.factor: must be at least 1"))
	}
	return errors.Join(errs...)
}

// Options maps the engine section onto app.Options, keeping defaults for
// anything left unset.
func (c Config) Options() app.Options {
	e := c.Engine
	opts := app.DefaultOptions()
	if e.MaxConcurrent > 0 {
		opts.MaxConcurrent = e.MaxConcurrent
	}
	opts.Cooldown = TTLDuration(e.Cooldown, opts.Cooldown)
	opts.DefaultTimer = TTLDuration(e.DefaultTimer, opts.DefaultTimer)
	opts.MinTimer = TTLDuration(e.MinTimer, opts.MinTimer)
	opts.MaxTimer = TTLDuration(e.MaxTimer, opts.MaxTimer)
	opts.AdvanceDelay = TTLDuration(e.AdvanceDelay, opts.AdvanceDelay)
	opts.ManualAdvance = e.ManualAdvance
	opts.IdleTimeout = TTLDuration(e.IdleTimeout, opts.IdleTimeout)
	opts.AnswerCooldown = TTLDuration(e.AnswerCooldown, opts.AnswerCooldown)
	opts.AnswerGap = TTLDuration(e.AnswerGap, opts.AnswerGap)
	opts.StartPause = TTLDuration(e.StartPause, opts.StartPause)
	opts.RevealPause = TTLDuration(e.RevealPause, opts.RevealPause)
	opts.CountdownEvery = TTLDuration(e.CountdownEvery, opts.CountdownEvery)
	opts.RegistrationTick = TTLDuration(e.RegistrationTick, opts.RegistrationTick)
	opts.FinalCountdown = TTLDuration(e.FinalCountdown, opts.FinalCountdown)
	if e.GroupCooldown != nil {
		opts.GroupCooldown = *e.GroupCooldown
	}
	if e.BroadcastLimit > 0 {
		opts.BroadcastLimit = e.BroadcastLimit
	}
	opts.AllowRetake = e.AllowRetake
	opts.RetainFor = TTLDuration(e.RetainFor, opts.RetainFor)
	opts.SweepInterval = TTLDuration(e.SweepInterval, opts.SweepInterval)
	opts.ResultsChannel = c.Telegram.ResultsChannel
	opts.Retry = c.RetryPolicy()
	return opts
}

// RetryPolicy is the single retry policy shared by every I/O call site.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	p.BaseDelay = TTLDuration(c.Retry.BaseDelay, p.BaseDelay)
	if c.Retry.Factor >= 1 {
		p.Factor = c.Retry.Factor
	}
	p.MaxDelay = TTLDuration(c.Retry.MaxDelay, p.MaxDelay)
	return p
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
