package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values are clamped to safe defaults. Other validation errors
// are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.AppOrigin != "" {
		u, err := url.Parse(c.AppOrigin)
		if err != nil {
			errs = append(errs, fmt.Errorf("app_origin %q is not a valid URL: %w", c.AppOrigin, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("app_origin scheme must be http or https, got %q", u.Scheme))
		} else if u.Path != "" && u.Path != "/" {
			errs = append(errs, fmt.Errorf("app_origin %q must not carry a path", c.AppOrigin))
		}
	}

	if c.PushURL != "" {
		u, err := url.Parse(c.PushURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("push_url %q is not a valid URL: %w", c.PushURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("push_url scheme must be http(s) or ws(s), got %q", u.Scheme))
		}
	}

	if c.PushToken != "" {
		for _, r := range c.PushToken {
			if unicode.IsControl(r) {
				errs = append(errs, fmt.Errorf("push_token contains control characters"))
				break
			}
		}
	}

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path must not be empty, restoring default"))
		c.SocketPath = Default().SocketPath
	}

	// Clamp the prompt delay so a misconfigured value cannot stall startup
	if c.PermissionPromptDelayMs < 0 {
		errs = append(errs, fmt.Errorf("permission_prompt_delay_ms %d is negative, clamping to 0", c.PermissionPromptDelayMs))
		c.PermissionPromptDelayMs = 0
	} else if c.PermissionPromptDelayMs > 60000 {
		errs = append(errs, fmt.Errorf("permission_prompt_delay_ms %d exceeds maximum 60000, clamping", c.PermissionPromptDelayMs))
		c.PermissionPromptDelayMs = 60000
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
