package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arhuman/devserve/internal/logging"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for %s=%s: %s", e.Field, e.Value, e.Message)
}

// ConfigLoader provides unified configuration loading with priority handling
type ConfigLoader struct {
	envVars map[string]string
	logger  *zap.Logger
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		envVars: make(map[string]string),
	}
}

// WithLogger sets the logger for the config loader
func (cl *ConfigLoader) WithLogger(logger *zap.Logger) *ConfigLoader {
	cl.logger = logger
	return cl
}

// LoadEnvFile loads environment variables from .env file
func (cl *ConfigLoader) LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		// File doesn't exist, not an error
		if cl.logger != nil {
			cl.logger.Debug("Environment file not found", zap.String("file", filename))
		}
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE format
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			if cl.logger != nil {
				cl.logger.Warn("Invalid line in env file",
					zap.String("file", filename),
					zap.Int("line", lineNum),
					zap.String("content", line))
			}
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
				(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
				value = value[1 : len(value)-1]
			}
		}

		cl.envVars[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading env file %s: %w", filename, err)
	}

	if cl.logger != nil {
		cl.logger.Debug("Loaded environment file",
			zap.String("file", filename),
			zap.Int("variables", len(cl.envVars)))
	}

	return nil
}

// GetString gets string value with priority: flags → env → file → default
func (cl *ConfigLoader) GetString(key, defaultValue string) string {
	// Check environment variables first (highest priority after flags)
	if value := os.Getenv(key); value != "" {
		return value
	}

	// Check .env file variables
	if value, exists := cl.envVars[key]; exists {
		return value
	}

	// Return default
	return defaultValue
}

// GetInt gets int value with validation
func (cl *ConfigLoader) GetInt(key string, defaultValue int) (int, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, ValidationError{
			Field:   key,
			Value:   value,
			Message: "must be a valid integer",
		}
	}

	return intVal, nil
}

// GetIntInRange gets int value with range validation
func (cl *ConfigLoader) GetIntInRange(key string, defaultValue, min, max int) (int, error) {
	value, err := cl.GetInt(key, defaultValue)
	if err != nil {
		return 0, err
	}

	if value < min || value > max {
		return 0, ValidationError{
			Field:   key,
			Value:   strconv.Itoa(value),
			Message: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}

	return value, nil
}

// GetBool gets bool value with validation
func (cl *ConfigLoader) GetBool(key string, defaultValue bool) (bool, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return false, ValidationError{
			Field:   key,
			Value:   value,
			Message: "must be true/false, 1/0, or yes/no",
		}
	}

	return boolVal, nil
}

// GetDuration gets duration value with validation
func (cl *ConfigLoader) GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	// Try parsing as duration first
	if duration, err := time.ParseDuration(value); err == nil {
		return duration, nil
	}

	// Try parsing as seconds (for backward compatibility)
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, ValidationError{
		Field:   key,
		Value:   value,
		Message: "must be a valid duration (e.g., '10s', '5m') or number of seconds",
	}
}

// ValidateHostname validates a hostname (without port)
func (cl *ConfigLoader) ValidateHostname(key, value string) error {
	if value == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "hostname cannot be empty",
		}
	}

	// Check if it contains a port (which it shouldn't)
	if strings.Contains(value, ":") {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "should contain only hostname, not host:port format",
		}
	}

	return nil
}

// ValidateRequired ensures a required field is not empty
func (cl *ConfigLoader) ValidateRequired(key, value string) error {
	if value == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "is required and cannot be empty",
		}
	}
	return nil
}

// ValidateDirectory ensures a directory path is valid
func (cl *ConfigLoader) ValidateDirectory(key, value string) error {
	if value == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "directory path cannot be empty",
		}
	}

	info, err := os.Stat(value)
	if err != nil {
		if os.IsNotExist(err) {
			return ValidationError{
				Field:   key,
				Value:   value,
				Message: "directory does not exist",
			}
		}
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: fmt.Sprintf("cannot access directory: %v", err),
		}
	}

	if !info.IsDir() {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "path exists but is not a directory",
		}
	}

	return nil
}

// ServeConfig holds configuration for the HTTPS development server
type ServeConfig struct {
	Host          string        // Bind host; 0.0.0.0 listens on all interfaces
	Port          int           // HTTPS port
	CertFile      string        // Path to the combined key+certificate PEM file
	Root          string        // Document root served by the file handler
	ShutdownGrace time.Duration // Grace period for draining connections on interrupt
	Debug         bool
}

// DefaultServeConfig returns default configuration for the server
func DefaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:          "0.0.0.0",
		Port:          8443,
		CertFile:      "server.pem",
		Root:          ".",
		ShutdownGrace: 5 * time.Second,
		Debug:         false,
	}
}

// Addr returns the host:port address the server binds to
func (c *ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadServeConfig loads server configuration with validation
func LoadServeConfig() (*ServeConfig, error) {
	// Create a simple logger for configuration loading diagnostics
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger, start := logging.FuncLogger(logger, "LoadServeConfig")
	defer logging.FuncExit(logger, start)

	loader := NewConfigLoader().WithLogger(logger)
	if err := loader.LoadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load environment file: %w", err)
	}

	config := DefaultServeConfig()
	var validationErrors []error

	// Load and validate bind host
	host := loader.GetString("SERVE_HOST", config.Host)
	if err := loader.ValidateHostname("SERVE_HOST", host); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.Host = host
	}

	// Load and validate port
	if port, err := loader.GetIntInRange("SERVE_PORT", config.Port, 1, 65535); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.Port = port
	}

	// Load credential file path
	config.CertFile = loader.GetString("SERVE_CERT", config.CertFile)
	if err := loader.ValidateRequired("SERVE_CERT", config.CertFile); err != nil {
		validationErrors = append(validationErrors, err)
	}

	// Load document root
	config.Root = loader.GetString("SERVE_ROOT", config.Root)

	// Load shutdown grace period
	if grace, err := loader.GetDuration("SHUTDOWN_GRACE", config.ShutdownGrace); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.ShutdownGrace = grace
	}

	// Load debug flag
	if debug, err := loader.GetBool("DEBUG", config.Debug); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.Debug = debug
	}

	// Parse command line flags (highest priority)
	hostFlag := flag.String("host", config.Host, "Host to bind the HTTPS listener on")
	port := flag.Int("port", config.Port, "Port to bind the HTTPS listener on")
	certFile := flag.String("cert", config.CertFile, "Path to the combined key+certificate PEM file")
	root := flag.String("root", config.Root, "Document root to serve files from")
	shutdownGrace := flag.Duration("shutdown-grace", config.ShutdownGrace, "Grace period for draining connections on interrupt")
	debug := flag.Bool("debug", config.Debug, "Enable debug mode")

	flag.Parse()

	// Apply and validate command line flags
	if err := loader.ValidateHostname("host", *hostFlag); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.Host = *hostFlag
	}

	if *port < 1 || *port > 65535 {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "port",
			Value:   strconv.Itoa(*port),
			Message: "must be between 1 and 65535",
		})
	} else {
		config.Port = *port
	}

	if err := loader.ValidateRequired("cert", *certFile); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.CertFile = *certFile
	}

	config.Root = *root
	config.ShutdownGrace = *shutdownGrace
	config.Debug = *debug

	// The document root must exist before the file handler is mounted on it
	if err := loader.ValidateDirectory("root", config.Root); err != nil {
		validationErrors = append(validationErrors, err)
	}

	// Return validation errors if any
	if len(validationErrors) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("Configuration validation failed:\n")
		for _, err := range validationErrors {
			errMsg.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
		}
		return nil, fmt.Errorf("%s", errMsg.String())
	}

	return config, nil
}

// LogConfig logs the configuration
func (c *ServeConfig) LogConfig(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("host", c.Host),
		zap.Int("port", c.Port),
		zap.String("cert_file", c.CertFile),
		zap.String("root", c.Root),
		zap.Duration("shutdown_grace", c.ShutdownGrace),
		zap.Bool("debug", c.Debug))
}
