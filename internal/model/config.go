package model

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultTestURL     = "http://example.com/"
	DefaultTimeout     = 2.0
	DefaultBackend     = "http"
	DefaultPrintFormat = `Content from {{.Key}}: "{{snippet .Body 100}}..."`
)

// Config holds every option of a run. Zero values of the optional numeric
// fields mean "off": RepeatSeconds 0 runs once, Workers 0 is unbounded.
type Config struct {
	Proxies       []string `yaml:"proxies"`
	InputFile     string   `yaml:"input"`
	Backend       string   `yaml:"backend"`
	Number        int      `yaml:"number"`
	RepeatSeconds float64  `yaml:"repeat"`
	TimeoutSecs   float64  `yaml:"timeout"`
	Workers       int      `yaml:"workers"`
	URL           string   `yaml:"url"`
	UserAgent     string   `yaml:"agent"`

	Print        bool   `yaml:"print"`
	PrintFormat  string `yaml:"format"`
	Quiet        bool   `yaml:"quiet"`
	Verbose      bool   `yaml:"verbose"`
	Debug        bool   `yaml:"debug"`
	Progress     bool   `yaml:"progress"`
	OutputFile   string `yaml:"output"`
	OutputFormat string `yaml:"output_format"` // json or csv
	ArchivePath  string `yaml:"archive"`
	Listen       string `yaml:"listen"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      DefaultBackend,
		Number:       1,
		TimeoutSecs:  DefaultTimeout,
		URL:          DefaultTestURL,
		PrintFormat:  DefaultPrintFormat,
		OutputFormat: "json",
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs * float64(time.Second))
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.RepeatSeconds * float64(time.Second))
}

// Validate checks the numeric and URL options. Proxy specs and the backend
// name are validated by their own packages.
func (c Config) Validate() error {
	var errs []error
	if c.Number < 1 {
		errs = append(errs, fmt.Errorf("number must be at least 1, got %d", c.Number))
	}
	if c.TimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.TimeoutSecs))
	}
	if c.RepeatSeconds < 0 {
		errs = append(errs, fmt.Errorf("repeat must not be negative, got %v", c.RepeatSeconds))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	u, err := url.Parse(c.URL)
	switch {
	case c.URL == "":
		errs = append(errs, errors.New("url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("url scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("url %q has no host", c.URL))
	}
	switch c.OutputFormat {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format: %s", c.OutputFormat))
	}
	return errors.Join(errs...)
}
