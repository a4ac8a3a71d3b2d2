// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrMissingEndpoint = errors.New("config: AZURE_CONTENTSAFETY_ENDPOINT is required")
	ErrMissingKey      = errors.New("config: AZURE_CONTENTSAFETY_KEY is required")
)

// Validate checks the configuration for values the daemon cannot run with.
// It returns all problems at once, joined.
func (c AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Upstream.Endpoint) == "" {
		errs = append(errs, ErrMissingEndpoint)
	} else if err := validateEndpoint(c.Upstream.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Upstream.Key) == "" {
		errs = append(errs, ErrMissingKey)
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("config: upstream timeout must be positive"))
	}
	if c.Upstream.RateLimit <= 0 {
		errs = append(errs, errors.New("config: upstream rate limit must be positive"))
	}

	if c.Pipeline.Blocklist == "" {
		errs = append(errs, errors.New("config: pipeline blocklist name must not be empty"))
	}
	if c.Pipeline.MaxTextChars <= 0 {
		errs = append(errs, errors.New("config: max text chars must be positive"))
	}
	if c.Pipeline.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("config: max image bytes must be positive"))
	}

	if c.RequestsPerMin <= 0 {
		errs = append(errs, errors.New("config: per-IP request limit must be positive"))
	}

	if c.TrustedProxies != "" {
		for _, part := range strings.Split(c.TrustedProxies, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Errorf("config: invalid trusted proxy CIDR %q", p))
			}
		}
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, errors.New("config: trace sampling rate must be in [0,1]"))
	}

	return errors.Join(errs...)
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("config: invalid upstream endpoint %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: upstream endpoint must be http(s), got %q", u.Scheme)
	}
	return nil
}
