// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/excubitor/config.yaml",
	"/etc/excubitor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path: "catalog.yaml",
		},
		Platform: PlatformConfig{
			BaseURL:            "https://www.googleapis.com/youtube/v3",
			APIKey:             "",
			Timeout:            30 * time.Second,
			Region:             "US",
			MaxSearchResults:   50,
			RatePerSecond:      8.0,
			Burst:              4,
			MaxRetries:         3,
			RetryBaseDelay:     500 * time.Millisecond,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 60 * time.Second,
		},
		Quota: QuotaConfig{
			DailyUnits:  10000,
			RescanUnits: 2000,
		},
		Discovery: DiscoveryConfig{
			Interval:         1 * time.Hour,
			CycleTimeout:     10 * time.Minute,
			MaxPerCycle:      2000,
			TierFresh:        0.20,
			TierChannels:     0.60,
			TierKeywords:     0.20,
			DedupeWindowDays: 7,
			SkipNoIPMatch:    true,
			// Film & Animation, Gaming, Entertainment
			TrendingCategories: []string{"1", "20", "24"},
			CooldownHigh:       2 * time.Hour,
			CooldownMedium:     6 * time.Hour,
			CooldownLow:        24 * time.Hour,
		},
		Rescore: RescoreConfig{
			Interval:          15 * time.Minute,
			BatchSize:         50,
			HighRiskThreshold: 70,
		},
		Store: StoreConfig{
			Path:            "/data/excubitor",
			InMemory:        false,
			SnapshotTTLDays: 30,
			GCInterval:      10 * time.Minute,
			GCDiscardRatio:  0.5,
		},
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			InProcess:           false,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DurableName:         "risk-analyzer",
			QueueGroup:          "analyzers",
			SubscriberCount:     4,
			// Router defaults (Watermill Router middleware)
			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterPoisonQueueEnabled:   true,
			RouterPoisonQueueTopic:     "video-intel-poison",
			RouterCloseTimeout:         30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8085,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Backward compatibility with existing environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// DAILY_QUOTA -> quota.daily_units
	// PLATFORM_API_KEY -> platform.api_key
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"discovery.trending_categories",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// It handles the mapping from flat operational environment variable names to
// the nested configuration structure.
//
// Examples:
//   - DAILY_QUOTA -> quota.daily_units
//   - PLATFORM_API_KEY -> platform.api_key
//   - DISCOVERY_INTERVAL -> discovery.interval
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// Map operational environment variable names to config sections
	envMappings := map[string]string{
		// Catalog mappings
		"catalog_path": "catalog.path",

		// Platform mappings
		"platform_base_url":             "platform.base_url",
		"platform_api_key":              "platform.api_key",
		"platform_timeout":              "platform.timeout",
		"platform_region":               "platform.region",
		"platform_max_search_results":   "platform.max_search_results",
		"platform_rate_per_second":      "platform.rate_per_second",
		"platform_burst":                "platform.burst",
		"platform_max_retries":          "platform.max_retries",
		"platform_retry_base_delay":     "platform.retry_base_delay",
		"platform_breaker_max_failures": "platform.breaker_max_failures",
		"platform_breaker_open_timeout": "platform.breaker_open_timeout",

		// Quota mappings
		"daily_quota":  "quota.daily_units",
		"rescan_quota": "quota.rescan_units",

		// Discovery mappings
		"discovery_interval":      "discovery.interval",
		"discovery_cycle_timeout": "discovery.cycle_timeout",
		"discovery_max_per_cycle": "discovery.max_per_cycle",
		"discovery_tier_fresh":    "discovery.tier_fresh",
		"discovery_tier_channels": "discovery.tier_channels",
		"discovery_tier_keywords": "discovery.tier_keywords",
		"dedupe_window_days":      "discovery.dedupe_window_days",
		"skip_no_ip_match":        "discovery.skip_no_ip_match",
		"trending_categories":     "discovery.trending_categories",
		"keyword_cooldown_high":   "discovery.cooldown_high",
		"keyword_cooldown_medium": "discovery.cooldown_medium",
		"keyword_cooldown_low":    "discovery.cooldown_low",

		// Rescore mappings
		"rescore_interval":    "rescore.interval",
		"rescore_batch_size":  "rescore.batch_size",
		"high_risk_threshold": "rescore.high_risk_threshold",

		// Store mappings
		"store_path":             "store.path",
		"store_in_memory":        "store.in_memory",
		"snapshot_ttl_days":      "store.snapshot_ttl_days",
		"store_gc_interval":      "store.gc_interval",
		"store_gc_discard_ratio": "store.gc_discard_ratio",

		// NATS mappings
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_in_process":     "nats.in_process",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",
		"nats_subscribers":    "nats.subscriber_count",
		// Router configuration environment mappings
		"nats_router_retry_count":    "nats.router_retry_count",
		"nats_router_retry_interval": "nats.router_retry_initial_interval",
		"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
		"nats_router_poison_topic":   "nats.router_poison_queue_topic",
		"nats_router_close_timeout":  "nats.router_close_timeout",

		// Server mappings
		"http_port":           "server.port",
		"http_host":           "server.host",
		"http_timeout":        "server.timeout",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"environment":         "server.environment",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
