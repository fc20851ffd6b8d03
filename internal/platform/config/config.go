package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the order ledger API.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Events    EventsConfig
	Orders    OrdersConfig
}

// ServerConfig captures HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig controls the Firestore client connection.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// EventsConfig controls order event publishing.
type EventsConfig struct {
	Enabled   bool
	ProjectID string
	Topic     string
}

// OrdersConfig carries ledger tuning knobs.
type OrdersConfig struct {
	// NumberRetries bounds how many fresh numbers are attempted when a
	// generated order/payment number collides with an existing reservation.
	NumberRetries int
	// DefaultPageSize applies when a list request does not specify one.
	DefaultPageSize int
	// MaxPageSize caps requested page sizes.
	MaxPageSize int
	// RequireApproval switches the approval workflow on for submitted orders.
	RequireApproval bool
	// ApprovalThreshold is the order total (minor units) at or above which a
	// submitted order needs approval once the workflow is on. Zero means
	// every submitted order does.
	ApprovalThreshold int64
}

// Option customises configuration loading.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile points the loader at a dotenv file. Missing files are ignored.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit key/value overrides, taking precedence over
// the process environment and any dotenv file. Primarily for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		if o.envMap == nil {
			o.envMap = make(map[string]string, len(values))
		}
		for k, v := range values {
			o.envMap[k] = v
		}
	}
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// ValidationError reports configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: missing or invalid fields: %s", strings.Join(e.fields, ", "))
}

// Fields returns the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Load assembles the configuration from the environment. Precedence per key:
// explicit env map, then process environment, then dotenv file, then default.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	_ = ctx

	options := loaderOptions{
		envFile:      ".env",
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotenv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotenv != nil {
			if value, ok := dotenv[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", "8080"),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Events: EventsConfig{
			Enabled:   boolWithDefault(lookup, "API_EVENTS_ENABLED", false),
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "API_EVENTS_TOPIC", "order-events"),
		},
		Orders: OrdersConfig{
			NumberRetries:     intWithDefault(lookup, "API_ORDERS_NUMBER_RETRIES", 1),
			DefaultPageSize:   intWithDefault(lookup, "API_ORDERS_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:       intWithDefault(lookup, "API_ORDERS_MAX_PAGE_SIZE", 100),
			RequireApproval:   boolWithDefault(lookup, "API_ORDERS_REQUIRE_APPROVAL", false),
			ApprovalThreshold: int64WithDefault(lookup, "API_ORDERS_APPROVAL_THRESHOLD", 0),
		},
	}

	// Events inherit the Firestore project when unset.
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Events.Enabled && cfg.Events.Topic == "" {
		missing = append(missing, "Events.Topic")
	}
	if cfg.Orders.NumberRetries < 0 {
		missing = append(missing, "Orders.NumberRetries")
	}
	if cfg.Orders.DefaultPageSize <= 0 || cfg.Orders.MaxPageSize < cfg.Orders.DefaultPageSize {
		missing = append(missing, "Orders.DefaultPageSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
