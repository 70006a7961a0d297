package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	ApiAddr        string   `json:"api_addr"`
	LogLevel       string   `json:"log_level"`
	TrustedProxies []string `json:"trusted_proxies"`
	// DatabasePath overrides where the sqlite store lives. Empty means
	// textab.db inside the data directory.
	DatabasePath string `json:"database_path"`
	// DashboardPath overrides the embedded dashboard page with a file on
	// disk. Changes to that file are pushed to connected browsers.
	DashboardPath string `json:"dashboard_path"`
}

// GenerateConfig bounds what the generation endpoints accept and how much
// history is kept.
type GenerateConfig struct {
	MaxRows    int `json:"max_rows"`
	MaxColumns int `json:"max_columns"`
	// HistoryLimit caps the number of retained history entries. Zero
	// disables history recording entirely.
	HistoryLimit int `json:"history_limit"`
}

// RateLimitConfig holds settings for per-client API rate limiting.
type RateLimitConfig struct {
	Enabled    bool    `json:"enabled"`
	RPS        float64 `json:"rps"`
	Burst      int     `json:"burst"`
	MaxClients int     `json:"max_clients"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig    `json:"server_config"`
	Generate  *GenerateConfig  `json:"generate_config"`
	RateLimit *RateLimitConfig `json:"rate_limit_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:        ":7160",
		LogLevel:       "info",
		TrustedProxies: []string{},
		DatabasePath:   "",
		DashboardPath:  "",
	}
}

// DefaultGenerateConfig creates generation limits with default values.
func DefaultGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		MaxRows:      1000,
		MaxColumns:   100,
		HistoryLimit: 1000,
	}
}

// DefaultRateLimitConfig creates rate limit settings with default values.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled:    true,
		RPS:        10,
		Burst:      30,
		MaxClients: 1024,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server == nil || c.Generate == nil || c.RateLimit == nil {
		return fmt.Errorf("config is missing a section")
	}
	if c.Server.ApiAddr == "" {
		return fmt.Errorf("server_config.api_addr must not be empty")
	}
	if c.Generate.MaxRows < 1 || c.Generate.MaxColumns < 1 {
		return fmt.Errorf("generate_config limits must be at least 1")
	}
	if c.Generate.HistoryLimit < 0 {
		return fmt.Errorf("generate_config.history_limit must not be negative")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate_limit_config.rps must be positive")
		}
		if c.RateLimit.Burst < 1 || c.RateLimit.MaxClients < 1 {
			return fmt.Errorf("rate_limit_config.burst and max_clients must be at least 1")
		}
	}
	return nil
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server:    DefaultServerConfig(),
		Generate:  DefaultGenerateConfig(),
		RateLimit: DefaultRateLimitConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, as the server can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ConfigManager handles thread-safe access to configuration and derived state (trusted proxies).
type ConfigManager struct {
	config       *Config
	mu           sync.RWMutex
	trustedCIDRs []*net.IPNet
	trustedIPs   []net.IP
	configPath   string
	logger       *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	cm := &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}
	cm.refreshCache()

	return cm, nil
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	// Return a dereferenced copy to prevent external modification of the internal state
	return *cm.config
}

// Update validates the new configuration, applies it, and saves it to disk.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	*cm.config = newConfig
	cm.refreshCache()

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsTrusted checks if an IP is in the trusted proxies list using the cache.
func (cm *ConfigManager) IsTrusted(ipAddr string) bool {
	parsedIP := net.ParseIP(ipAddr)
	if parsedIP == nil {
		return false
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, ipNet := range cm.trustedCIDRs {
		if ipNet.Contains(parsedIP) {
			return true
		}
	}

	for _, trustedIP := range cm.trustedIPs {
		if trustedIP.Equal(parsedIP) {
			return true
		}
	}

	return false
}

// refreshCache rebuilds the binary IP lists from the config strings.
func (cm *ConfigManager) refreshCache() {
	var cidrs []*net.IPNet
	var ips []net.IP

	for _, t := range cm.config.Server.TrustedProxies {
		if strings.Contains(t, "/") {
			_, ipNet, err := net.ParseCIDR(t)
			if err == nil {
				cidrs = append(cidrs, ipNet)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy CIDR", "cidr", t, "error", err)
			}
		} else {
			ip := net.ParseIP(t)
			if ip != nil {
				ips = append(ips, ip)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy IP", "ip", t)
			}
		}
	}
	cm.trustedCIDRs = cidrs
	cm.trustedIPs = ips
}
