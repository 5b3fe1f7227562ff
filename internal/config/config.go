package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/August26/proxytest-go/internal/backend"
	"github.com/August26/proxytest-go/internal/model"
)

const envPrefix = "PROXYTEST_"

// Bind registers every option on fs, writing parsed values into cfg.
// The config file path is returned separately since it is not part of a run.
func Bind(fs *flag.FlagSet, cfg *model.Config) *string {
	d := model.DefaultConfig()

	fs.StringVar(&cfg.Backend, "backend", d.Backend, "transport backend: "+strings.Join(backend.Names(), " | "))
	fs.IntVar(&cfg.Number, "number", d.Number, "number of requests per proxy in each pass")
	fs.Float64Var(&cfg.RepeatSeconds, "repeat", d.RepeatSeconds, "repeat the test every N seconds (0 runs once)")
	fs.Float64Var(&cfg.TimeoutSecs, "timeout", d.TimeoutSecs, "timeout in seconds for each request")
	fs.IntVar(&cfg.Workers, "workers", d.Workers, "maximum concurrent requests (0 is unbounded)")
	fs.StringVar(&cfg.URL, "url", d.URL, "URL to fetch through each proxy")
	fs.StringVar(&cfg.UserAgent, "agent", d.UserAgent, "User-Agent header (random if empty)")
	fs.StringVar(&cfg.InputFile, "input", d.InputFile, "path to file with proxy list")
	fs.BoolVar(&cfg.Print, "print", d.Print, "print the content of each successful response")
	fs.StringVar(&cfg.PrintFormat, "format", d.PrintFormat, "template used by -print")
	fs.BoolVar(&cfg.Quiet, "quiet", d.Quiet, "suppress all logs")
	fs.BoolVar(&cfg.Verbose, "verbose", d.Verbose, "log every request")
	fs.BoolVar(&cfg.Debug, "debug", d.Debug, "enable debug logs")
	fs.BoolVar(&cfg.Progress, "progress", d.Progress, "show a progress bar for each pass")
	fs.StringVar(&cfg.OutputFile, "output", d.OutputFile, "optional path to write results (json/csv)")
	fs.StringVar(&cfg.OutputFormat, "output-format", d.OutputFormat, "output format: json | csv")
	fs.StringVar(&cfg.ArchivePath, "archive", d.ArchivePath, "optional sqlite file archiving every attempt")
	fs.StringVar(&cfg.Listen, "listen", d.Listen, "optional address for the status API, e.g. :8090")

	return fs.String("config", "", "path to YAML config file")
}

// apply copies one flag's value from src into dst.
var apply = map[string]func(dst *model.Config, src model.Config){
	"backend":       func(d *model.Config, s model.Config) { d.Backend = s.Backend },
	"number":        func(d *model.Config, s model.Config) { d.Number = s.Number },
	"repeat":        func(d *model.Config, s model.Config) { d.RepeatSeconds = s.RepeatSeconds },
	"timeout":       func(d *model.Config, s model.Config) { d.TimeoutSecs = s.TimeoutSecs },
	"workers":       func(d *model.Config, s model.Config) { d.Workers = s.Workers },
	"url":           func(d *model.Config, s model.Config) { d.URL = s.URL },
	"agent":         func(d *model.Config, s model.Config) { d.UserAgent = s.UserAgent },
	"input":         func(d *model.Config, s model.Config) { d.InputFile = s.InputFile },
	"print":         func(d *model.Config, s model.Config) { d.Print = s.Print },
	"format":        func(d *model.Config, s model.Config) { d.PrintFormat = s.PrintFormat },
	"quiet":         func(d *model.Config, s model.Config) { d.Quiet = s.Quiet },
	"verbose":       func(d *model.Config, s model.Config) { d.Verbose = s.Verbose },
	"debug":         func(d *model.Config, s model.Config) { d.Debug = s.Debug },
	"progress":      func(d *model.Config, s model.Config) { d.Progress = s.Progress },
	"output":        func(d *model.Config, s model.Config) { d.OutputFile = s.OutputFile },
	"output-format": func(d *model.Config, s model.Config) { d.OutputFormat = s.OutputFormat },
	"archive":       func(d *model.Config, s model.Config) { d.ArchivePath = s.ArchivePath },
	"listen":        func(d *model.Config, s model.Config) { d.Listen = s.Listen },
}

// Load builds the effective config. Later sources win:
// defaults, the YAML file at path, .env and PROXYTEST_* variables, then the
// flags explicitly set on fs (whose values were parsed into flagged).
// Positional proxies, when present, replace any configured list.
func Load(fs *flag.FlagSet, flagged model.Config, path string) (model.Config, error) {
	cfg := model.DefaultConfig()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if fn, ok := apply[f.Name]; ok {
			fn(&cfg, flagged)
		}
	})
	if args := fs.Args(); len(args) > 0 {
		cfg.Proxies = args
	}

	return cfg, nil
}

func loadFile(path string, cfg *model.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *model.Config) error {
	var errs []error

	cfg.Backend = getEnv("BACKEND", cfg.Backend)
	cfg.URL = getEnv("URL", cfg.URL)
	cfg.UserAgent = getEnv("AGENT", cfg.UserAgent)
	cfg.InputFile = getEnv("INPUT", cfg.InputFile)
	cfg.OutputFile = getEnv("OUTPUT", cfg.OutputFile)
	cfg.OutputFormat = getEnv("OUTPUT_FORMAT", cfg.OutputFormat)
	cfg.ArchivePath = getEnv("ARCHIVE", cfg.ArchivePath)
	cfg.Listen = getEnv("LISTEN", cfg.Listen)
	if v := getEnv("PROXIES", ""); v != "" {
		cfg.Proxies = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	var err error
	if cfg.Number, err = getEnvAsInt("NUMBER", cfg.Number); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workers, err = getEnvAsInt("WORKERS", cfg.Workers); err != nil {
		errs = append(errs, err)
	}
	if cfg.TimeoutSecs, err = getEnvAsFloat("TIMEOUT", cfg.TimeoutSecs); err != nil {
		errs = append(errs, err)
	}
	if cfg.RepeatSeconds, err = getEnvAsFloat("REPEAT", cfg.RepeatSeconds); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}

	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}

	return value, nil
}
