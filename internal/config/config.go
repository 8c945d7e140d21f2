package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/cryptbreak/internal/env"
	"github.com/RowanDark/cryptbreak/internal/redact"
)

// LocalFile is the per-directory configuration file.
const LocalFile = "cryptbreak.yml"

// Config captures the cryptbreak configuration resolved from defaults,
// optional files, and environment overrides.
type Config struct {
	GRPCAddr       string        `yaml:"grpc_addr"`
	HTTPAddr       string        `yaml:"http_addr"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	AuditLog       string        `yaml:"audit_log"`
	AuthToken      string        `yaml:"auth_token"`
	JWTSecret      string        `yaml:"jwt_secret"`
	ScoreCacheSize int           `yaml:"score_cache_size"`
	XORWorkers     int           `yaml:"xor_workers"`
	ElicitTimeout  time.Duration `yaml:"elicit_timeout"`
	FactorStore    string        `yaml:"factor_store"`
	Solvers        SolverConfig  `yaml:"solvers"`
	Tracing        TracingConfig `yaml:"tracing"`
}

// SolverConfig locates the external number theory tools. Empty paths are
// searched for on PATH.
type SolverConfig struct {
	YafuPath string        `yaml:"yafu_path"`
	SagePath string        `yaml:"sage_path"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
	FilePath    string  `yaml:"file_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GRPCAddr:       "127.0.0.1:50051",
		HTTPAddr:       "127.0.0.1:8080",
		LogLevel:       "info",
		LogFormat:      "text",
		ScoreCacheSize: 2048,
		ElicitTimeout:  2 * time.Minute,
		Solvers: SolverConfig{
			Timeout: 5 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "cryptbreak",
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. Files are applied in this order, later ones winning:
//  1. ~/.ctfcrypto/config.yml (legacy, only when 2 is absent)
//  2. ~/.cryptbreak/config.yml
//  3. ./cryptbreak.yml
//
// Environment variables prefixed with CRYPTBREAK_ (or the legacy CTFCRYPTO_)
// have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if err := loadHomeConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLocalConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.ScoreCacheSize < 0 {
		errs = append(errs, fmt.Errorf("score_cache_size must not be negative, got %d", c.ScoreCacheSize))
	}
	if c.XORWorkers < 0 {
		errs = append(errs, fmt.Errorf("xor_workers must not be negative, got %d", c.XORWorkers))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio))
	}
	if c.Solvers.Timeout < 0 || c.ElicitTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	if c.AuthToken != "" {
		c.AuthToken = redact.Masked
	}
	if c.JWTSecret != "" {
		c.JWTSecret = redact.Masked
	}
	return c
}

// YAML renders c in the file format Load reads.
func (c Config) YAML() ([]byte, error) {
	elicit := c.ElicitTimeout.String()
	timeout := c.Solvers.Timeout.String()
	return yaml.Marshal(fileConfig{
		GRPCAddr:       &c.GRPCAddr,
		HTTPAddr:       &c.HTTPAddr,
		LogLevel:       &c.LogLevel,
		LogFormat:      &c.LogFormat,
		AuditLog:       &c.AuditLog,
		AuthToken:      &c.AuthToken,
		JWTSecret:      &c.JWTSecret,
		ScoreCacheSize: &c.ScoreCacheSize,
		XORWorkers:     &c.XORWorkers,
		ElicitTimeout:  &elicit,
		FactorStore:    &c.FactorStore,
		Solvers: &fileSolverConfig{
			YafuPath: &c.Solvers.YafuPath,
			SagePath: &c.Solvers.SagePath,
			Timeout:  &timeout,
		},
		Tracing: &fileTracingConfig{
			ServiceName: &c.Tracing.ServiceName,
			SampleRatio: &c.Tracing.SampleRatio,
			FilePath:    &c.Tracing.FilePath,
		},
	})
}

func loadHomeConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("determine home directory: %w", err)
	}

	newPath := filepath.Join(home, ".cryptbreak", "config.yml")
	ok, err := applyFile(cfg, newPath)
	if err != nil || ok {
		return err
	}

	legacyPath := filepath.Join(home, ".ctfcrypto", "config.yml")
	ok, err = applyFile(cfg, legacyPath)
	if ok {
		slog.Warn("using legacy config file", "path", legacyPath, "preferred", newPath)
	}
	return err
}

func loadLocalConfig(cfg *Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	_, err = applyFile(cfg, filepath.Join(wd, LocalFile))
	return err
}

// applyFile overlays the YAML file at path. ok is false when it does not exist.
func applyFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data); err != nil {
		return true, fmt.Errorf("parse config %s: %w", path, err)
	}
	return true, nil
}

// fileConfig mirrors Config with pointer fields so absent keys leave the
// current value alone.
type fileConfig struct {
	GRPCAddr       *string            `yaml:"grpc_addr"`
	HTTPAddr       *string            `yaml:"http_addr"`
	LogLevel       *string            `yaml:"log_level"`
	LogFormat      *string            `yaml:"log_format"`
	AuditLog       *string            `yaml:"audit_log"`
	AuthToken      *string            `yaml:"auth_token"`
	JWTSecret      *string            `yaml:"jwt_secret"`
	ScoreCacheSize *int               `yaml:"score_cache_size"`
	XORWorkers     *int               `yaml:"xor_workers"`
	ElicitTimeout  *string            `yaml:"elicit_timeout"`
	FactorStore    *string            `yaml:"factor_store"`
	Solvers        *fileSolverConfig  `yaml:"solvers"`
	Tracing        *fileTracingConfig `yaml:"tracing"`
}

type fileSolverConfig struct {
	YafuPath *string `yaml:"yafu_path"`
	SagePath *string `yaml:"sage_path"`
	Timeout  *string `yaml:"timeout"`
}

type fileTracingConfig struct {
	ServiceName *string  `yaml:"service_name"`
	SampleRatio *float64 `yaml:"sample_ratio"`
	FilePath    *string  `yaml:"file_path"`
}

func applyFileConfig(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.AuditLog, fc.AuditLog)
	setString(&cfg.AuthToken, fc.AuthToken)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setString(&cfg.FactorStore, fc.FactorStore)
	if fc.ScoreCacheSize != nil {
		cfg.ScoreCacheSize = *fc.ScoreCacheSize
	}
	if fc.XORWorkers != nil {
		cfg.XORWorkers = *fc.XORWorkers
	}
	if err := setDuration(&cfg.ElicitTimeout, fc.ElicitTimeout, "elicit_timeout"); err != nil {
		return err
	}
	if fc.Solvers != nil {
		setString(&cfg.Solvers.YafuPath, fc.Solvers.YafuPath)
		setString(&cfg.Solvers.SagePath, fc.Solvers.SagePath)
		if err := setDuration(&cfg.Solvers.Timeout, fc.Solvers.Timeout, "solvers.timeout"); err != nil {
			return err
		}
	}
	if fc.Tracing != nil {
		setString(&cfg.Tracing.ServiceName, fc.Tracing.ServiceName)
		setString(&cfg.Tracing.FilePath, fc.Tracing.FilePath)
		if fc.Tracing.SampleRatio != nil {
			cfg.Tracing.SampleRatio = *fc.Tracing.SampleRatio
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"GRPC_ADDR", &cfg.GRPCAddr},
		{"HTTP_ADDR", &cfg.HTTPAddr},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"LOG_FORMAT", &cfg.LogFormat},
		{"AUDIT_LOG", &cfg.AuditLog},
		{"AUTH_TOKEN", &cfg.AuthToken},
		{"JWT_SECRET", &cfg.JWTSecret},
		{"FACTOR_STORE", &cfg.FactorStore},
		{"YAFU_PATH", &cfg.Solvers.YafuPath},
		{"SAGE_PATH", &cfg.Solvers.SagePath},
		{"TRACE_SERVICE_NAME", &cfg.Tracing.ServiceName},
		{"TRACE_FILE", &cfg.Tracing.FilePath},
	}
	for _, s := range strs {
		if v, ok := env.Get(s.name); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SCORE_CACHE_SIZE", &cfg.ScoreCacheSize},
		{"XOR_WORKERS", &cfg.XORWorkers},
	}
	for _, n := range ints {
		if v, ok := env.Get(n.name); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", env.Prefix, n.name, err)
			}
			*n.dst = parsed
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"SOLVER_TIMEOUT", &cfg.Solvers.Timeout},
		{"ELICIT_TIMEOUT", &cfg.ElicitTimeout},
	}
	for _, d := range durations {
		if v, ok := env.Get(d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", env.Prefix, d.name, err)
			}
			*d.dst = parsed
		}
	}

	if v, ok := env.Get("TRACE_SAMPLE_RATIO"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTRACE_SAMPLE_RATIO: %w", env.Prefix, err)
		}
		cfg.Tracing.SampleRatio = parsed
	}
	return nil
}
