package modem

import (
	"time"

	"i4.energy/across/rak811/at"
)

// Default timings, matching the module's documented response times.
const (
	DefaultATTimeout   = 3 * time.Second
	DefaultJoinTimeout = 10 * time.Second
	DefaultSendTimeout = 5 * time.Second
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// Config holds the driver settings. Use NewConfigBuilder to create one.
type Config struct {
	dialer        Dialer
	atTimeout     time.Duration
	maxLineLength int
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = DefaultATTimeout
	}
	if c.maxLineLength == 0 {
		c.maxLineLength = at.DefaultMaxLineLength
	}
}

// ConfigBuilder builds a validated Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets the Dialer used by New to open the transport.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithATTimeout sets the response timeout of configuration commands.
// Join and Send take their own timeout.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithMaxLineLength bounds the receive buffer of a partial line.
func (b *ConfigBuilder) WithMaxLineLength(n int) *ConfigBuilder {
	b.config.maxLineLength = n
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
