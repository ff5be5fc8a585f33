package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "terminal.scrollback")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateTerminal()...)
	errors = append(errors, c.validateLifecycle()...)
	errors = append(errors, c.validateChannel()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "must be a URL of the form scheme://host[:port]",
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Value:   c.Server.URL,
			Message: "scheme must be http or https",
		})
	}

	if c.Server.WsURL != "" {
		if u, err := url.Parse(c.Server.WsURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "server.ws_url",
				Value:   c.Server.WsURL,
				Message: "must be a URL of the form scheme://host[:port]",
			})
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errors = append(errors, ValidationError{
				Field:   "server.ws_url",
				Value:   c.Server.WsURL,
				Message: "scheme must be ws or wss",
			})
		}
	}

	return errors
}

func (c *Config) validateTerminal() []ValidationError {
	var errors []ValidationError

	if c.Terminal.Scrollback < 0 {
		errors = append(errors, ValidationError{
			Field:   "terminal.scrollback",
			Value:   c.Terminal.Scrollback,
			Message: "must not be negative",
		})
	}
	if c.Terminal.SettleMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "terminal.settle_ms",
			Value:   c.Terminal.SettleMs,
			Message: "must not be negative",
		})
	}
	if c.Terminal.RefitMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "terminal.refit_ms",
			Value:   c.Terminal.RefitMs,
			Message: "must not be negative",
		})
	}

	return errors
}

func (c *Config) validateLifecycle() []ValidationError {
	var errors []ValidationError

	if c.Lifecycle.StatusExpiryS < 1 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.status_expiry_s",
			Value:   c.Lifecycle.StatusExpiryS,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateChannel() []ValidationError {
	var errors []ValidationError

	if c.Channel.ReconnectDelayS < 1 {
		errors = append(errors, ValidationError{
			Field:   "channel.reconnect_delay_s",
			Value:   c.Channel.ReconnectDelayS,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
