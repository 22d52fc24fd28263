package osrm

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid osrm request config")

const (
	DefaultHost    = "http://localhost:5000"
	DefaultVersion = "v1"
	DefaultProfile = "driving"
)

// RequestConfig names the OSRM instance, API version and routing profile a
// request goes to. It is a plain value: copies never share state.
type RequestConfig struct {
	Host    string
	Version string
	Profile string
}

func DefaultRequestConfig() RequestConfig {
	return RequestConfig{Host: DefaultHost, Version: DefaultVersion, Profile: DefaultProfile}
}

// ParseRequestConfig reads "host/version/profile" or "host/*/version/profile".
// The host may carry a scheme and a port. An empty string yields the default.
func ParseRequestConfig(addr string) (RequestConfig, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return DefaultRequestConfig(), nil
	}
	scheme := ""
	if i := strings.Index(addr, "://"); i >= 0 {
		scheme, addr = addr[:i+3], addr[i+3:]
	}
	parts := strings.Split(strings.Trim(addr, "/"), "/")
	if len(parts) < 3 {
		return RequestConfig{}, fmt.Errorf("%q: want host/version/profile: %w", addr, ErrInvalidConfig)
	}
	n := len(parts)
	cfg := RequestConfig{
		Host:    scheme + parts[0],
		Version: parts[n-2],
		Profile: parts[n-1],
	}
	if err := cfg.Validate(); err != nil {
		return RequestConfig{}, err
	}
	return cfg, nil
}

func (c RequestConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Host) == "":
		return fmt.Errorf("empty host: %w", ErrInvalidConfig)
	case c.Version == "" || c.Version == "*":
		return fmt.Errorf("empty version: %w", ErrInvalidConfig)
	case c.Profile == "":
		return fmt.Errorf("empty profile: %w", ErrInvalidConfig)
	}
	return nil
}

func (c RequestConfig) String() string {
	return strings.Join([]string{c.Host, "*", c.Version, c.Profile}, "/")
}

func (c RequestConfig) WithHost(host string) RequestConfig {
	c.Host = host
	return c
}

func (c RequestConfig) WithProfile(profile string) RequestConfig {
	c.Profile = profile
	return c
}

// endpoint is the base URL of one OSRM service, without coordinates.
func (c RequestConfig) endpoint(service string) string {
	return strings.Join([]string{CheckHost(c.Host), service, c.Version, c.Profile}, "/")
}

// CheckHost adds a missing http scheme and drops one trailing slash.
func CheckHost(host string) string {
	host = strings.TrimSpace(host)
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/")
}
