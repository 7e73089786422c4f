package core

import (
	"os"
	"strconv"
	"time"
)

// InfiniteTimeout is the sentinel timeout value meaning "never time
// out" (spec.md §4.1: "timeout ... :infinity allowed").
const InfiniteTimeout time.Duration = -1

// Config holds the process-wide tunables from spec.md §6. It follows the
// teacher's three-layer configuration priority:
//  1. Hard-coded defaults (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options passed to NewConfig (highest priority)
//
// Unlike the teacher's Config, this one is constructed explicitly by the
// embedding application (via NewConfig) and passed into exec.New (chain
// and workflow reach it through the *exec.Exec they are given) rather
// than read from a package-level
// global — a language without an application-environment (like Go) has
// no natural place for implicit global mutable config, so callers thread
// it through.
type Config struct {
	DefaultTimeout           time.Duration
	DefaultAwaitTimeout      time.Duration
	DefaultMaxRetries        int
	DefaultBackoff           time.Duration
	DefaultMaxBackoff        time.Duration
	DefaultCompensationTimeout time.Duration

	AsyncDownGracePeriod     time.Duration
	AsyncShutdownGracePeriod time.Duration

	ChainDownGracePeriod     time.Duration
	ChainShutdownGracePeriod time.Duration

	CompensationDownGracePeriod time.Duration
	ExecDownGracePeriod         time.Duration
	ExecShutdownGracePeriod     time.Duration

	MailboxFlushTimeout    time.Duration
	MailboxFlushMaxMessages int // 0 means unbounded

	// ZeroTimeoutIsImmediate gates spec.md §9's first Open Question: when
	// false (the default), an explicit timeout:0 opt falls through to
	// DefaultTimeout; when true, timeout:0 means "time out immediately".
	ZeroTimeoutIsImmediate bool

	// LogLevel gates which telemetry log events (spec.md §6) are emitted.
	LogLevel LogLevel

	Logger Logger
}

// DefaultConfig returns the hard-coded defaults from spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout:              30 * time.Second,
		DefaultAwaitTimeout:         5 * time.Second,
		DefaultMaxRetries:           1,
		DefaultBackoff:              250 * time.Millisecond,
		DefaultMaxBackoff:           30 * time.Second,
		DefaultCompensationTimeout:  5 * time.Second,
		AsyncDownGracePeriod:        100 * time.Millisecond,
		AsyncShutdownGracePeriod:    1 * time.Second,
		ChainDownGracePeriod:        100 * time.Millisecond,
		ChainShutdownGracePeriod:    1 * time.Second,
		CompensationDownGracePeriod: 100 * time.Millisecond,
		ExecDownGracePeriod:         100 * time.Millisecond,
		ExecShutdownGracePeriod:     50 * time.Millisecond,
		MailboxFlushTimeout:         0,
		MailboxFlushMaxMessages:     0,
		ZeroTimeoutIsImmediate:      false,
		LogLevel:                    LevelInfo,
		Logger:                      NoOpLogger{},
	}
}

// Option mutates a Config during construction (functional-options
// pattern, matching the teacher's core.Option convention).
type Option func(*Config)

func WithDefaultTimeout(d time.Duration) Option    { return func(c *Config) { c.DefaultTimeout = d } }
func WithDefaultAwaitTimeout(d time.Duration) Option {
	return func(c *Config) { c.DefaultAwaitTimeout = d }
}
func WithMaxRetries(n int) Option         { return func(c *Config) { c.DefaultMaxRetries = n } }
func WithBackoff(d time.Duration) Option  { return func(c *Config) { c.DefaultBackoff = d } }
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Config) { c.DefaultMaxBackoff = d }
}
func WithCompensationTimeout(d time.Duration) Option {
	return func(c *Config) { c.DefaultCompensationTimeout = d }
}
func WithLogger(l Logger) Option { return func(c *Config) { c.Logger = l } }
func WithLogLevel(l LogLevel) Option { return func(c *Config) { c.LogLevel = l } }
func WithZeroTimeoutImmediate(v bool) Option {
	return func(c *Config) { c.ZeroTimeoutIsImmediate = v }
}
func WithMailboxFlush(timeout time.Duration, maxMessages int) Option {
	return func(c *Config) {
		c.MailboxFlushTimeout = timeout
		c.MailboxFlushMaxMessages = maxMessages
	}
}

// NewConfig builds a Config: defaults, then ACTIONS_* environment
// overrides, then functional options (highest priority), mirroring the
// teacher's NewConfig layering in core/config.go.
func NewConfig(opts ...Option) *Config {
	c := DefaultConfig()
	applyEnv(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func applyEnv(c *Config) {
	if v, ok := envDuration("ACTIONS_DEFAULT_TIMEOUT"); ok {
		c.DefaultTimeout = v
	}
	if v, ok := envDuration("ACTIONS_DEFAULT_AWAIT_TIMEOUT"); ok {
		c.DefaultAwaitTimeout = v
	}
	if v, ok := envInt("ACTIONS_MAX_RETRIES"); ok {
		c.DefaultMaxRetries = v
	}
	if v, ok := envDuration("ACTIONS_BACKOFF"); ok {
		c.DefaultBackoff = v
	}
	if v, ok := envDuration("ACTIONS_MAX_BACKOFF"); ok {
		c.DefaultMaxBackoff = v
	}
	if v, ok := envDuration("ACTIONS_COMPENSATION_TIMEOUT"); ok {
		c.DefaultCompensationTimeout = v
	}
	if v, ok := os.LookupEnv("ACTIONS_LOG_LEVEL"); ok {
		c.LogLevel = ParseLogLevel(v)
	}
	if v, ok := envBool("ACTIONS_ZERO_TIMEOUT_IMMEDIATE"); ok {
		c.ZeroTimeoutIsImmediate = v
	}
}

func envDuration(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// EffectiveTimeout resolves an opt-supplied timeout against the config,
// honoring spec.md §9's Open Question about timeout:0.
func (c *Config) EffectiveTimeout(requested time.Duration, wasSet bool) time.Duration {
	if !wasSet {
		return c.DefaultTimeout
	}
	if requested == 0 {
		if c.ZeroTimeoutIsImmediate {
			return 0
		}
		return c.DefaultTimeout
	}
	return requested
}
