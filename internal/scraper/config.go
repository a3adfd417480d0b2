package scraper

import (
	"fmt"
	"strings"
	"time"
)

// Limits shared by every plugin configuration.
const (
	MinRateLimit = 1
	MaxRateLimit = 100
	MinTimeout   = 5 * time.Second
	MaxTimeout   = 300 * time.Second
	MaxRetries   = 10

	DefaultRateLimit      = 10
	DefaultCrawlDelay     = time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultEmptyPageLimit = 3
)

// Config carries the settings a plugin needs to crawl one source.
// It is immutable once validated; invalid values fail at construction,
// never at use.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	RateLimit  int           `mapstructure:"rate_limit"`
	CrawlDelay time.Duration `mapstructure:"crawl_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent"`

	// Selectors maps logical element names (item, title, url, date, ...) to
	// plugin-specific CSS selectors.
	Selectors map[string]string `mapstructure:"selectors"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `mapstructure:"headers"`

	// Auth holds credentials for sources that require them.
	Auth map[string]string `mapstructure:"auth"`

	// CustomParams are appended to every search URL the plugin builds.
	CustomParams map[string]string `mapstructure:"custom_params"`

	// EmptyPageLimit is the number of consecutive result pages with zero
	// parsed items after which discovery assumes end-of-results. This is a
	// heuristic, not a protocol guarantee: sparse paginated sources may
	// terminate early.
	EmptyPageLimit int `mapstructure:"empty_page_limit"`
}

// Normalize fills defaults and strips the trailing slash off the base URL.
// Call it before Validate.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.CrawlDelay == 0 {
		c.CrawlDelay = DefaultCrawlDelay
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.EmptyPageLimit == 0 {
		c.EmptyPageLimit = DefaultEmptyPageLimit
	}
}

// Validate checks the shared plugin parameters. Plugin implementations add
// their own selector requirements on top.
func (c *Config) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if err := ValidateRateLimit(c.RateLimit); err != nil {
		return err
	}
	if c.CrawlDelay < 100*time.Millisecond {
		return &ValidationError{Field: "crawl_delay", Reason: "must be at least 100ms"}
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return &ValidationError{Field: "timeout", Reason: fmt.Sprintf("must be between %s and %s", MinTimeout, MaxTimeout)}
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetries {
		return &ValidationError{Field: "max_retries", Reason: fmt.Sprintf("must be between 0 and %d", MaxRetries)}
	}
	if c.EmptyPageLimit < 1 {
		return &ValidationError{Field: "empty_page_limit", Reason: "must be at least 1"}
	}
	for name, sel := range c.Selectors {
		if err := ValidateSelector(sel); err != nil {
			return fmt.Errorf("selector %q: %w", name, err)
		}
	}
	return nil
}
