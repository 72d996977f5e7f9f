// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML config file, and environment variables (highest priority).
//
// Configuration Categories:
//
//  1. Discovery pipeline:
//     - Catalog: the IP target catalog file
//     - Platform: video platform API client (credentials, timeouts, limits)
//     - Quota: daily ledger ceilings for discovery and rescanning
//     - Discovery: orchestrator tick, tier allocations, dedupe window, cooldowns
//     - Rescore: risk maintenance tick, batch size, high-risk threshold
//
//  2. Infrastructure:
//     - Store: BadgerDB state directory, snapshot retention, GC cadence
//     - NATS: event transport with Watermill/NATS JetStream
//     - Server: operational HTTP endpoint (health, status, trigger)
//
//  3. Observability:
//     - Logging: log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog"`
	Platform  PlatformConfig  `koanf:"platform"`
	Quota     QuotaConfig     `koanf:"quota"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Rescore   RescoreConfig   `koanf:"rescore"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CatalogConfig locates the IP target catalog.
//
// The catalog is a YAML file listing the franchises, characters, and
// AI-generation tool keywords the system monitors. It is loaded once at
// startup and treated as immutable for the life of the process.
//
// Environment Variables:
//   - CATALOG_PATH: Path to the catalog YAML file
type CatalogConfig struct {
	// Path is the location of the IP target catalog YAML file.
	Path string `koanf:"path"`
}

// PlatformConfig holds video platform API client settings.
//
// Environment Variables:
//   - PLATFORM_BASE_URL: API base URL
//   - PLATFORM_API_KEY: API key (required)
//   - PLATFORM_TIMEOUT: Per-call timeout (default: 30s)
//   - PLATFORM_REGION: Region code for search and trending (default: US)
type PlatformConfig struct {
	// BaseURL is the platform API base URL.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates every platform call. Required.
	APIKey string `koanf:"api_key"`

	// Timeout bounds each HTTP round-trip.
	Timeout time.Duration `koanf:"timeout"`

	// Region is the region code passed to search and trending calls.
	Region string `koanf:"region"`

	// MaxSearchResults caps results requested per search page (platform max 50).
	MaxSearchResults int `koanf:"max_search_results"`

	// RatePerSecond and Burst shape the client-side request rate.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// MaxRetries and RetryBaseDelay control retry of transient failures
	// (HTTP 5xx and network errors). 429 and 403 quota responses are never
	// retried.
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// BreakerMaxFailures consecutive failures open the circuit;
	// BreakerOpenTimeout is how long it stays open before a probe.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// QuotaConfig holds the daily API budget ceilings.
//
// Environment Variables:
//   - DAILY_QUOTA: Discovery ledger ceiling in units (default: 10000)
//   - RESCAN_QUOTA: Rescore sub-budget in units (default: 2000)
type QuotaConfig struct {
	// DailyUnits is the hard ceiling of the discovery ledger per UTC day.
	DailyUnits int64 `koanf:"daily_units"`

	// RescanUnits is the separate daily sub-budget for rescore video_details
	// calls.
	RescanUnits int64 `koanf:"rescan_units"`
}

// DiscoveryConfig holds scan cycle orchestration settings.
//
// Environment Variables:
//   - DISCOVERY_INTERVAL: Orchestrator tick (default: 1h)
//   - DISCOVERY_MAX_PER_CYCLE: Max videos processed per cycle (default: 2000)
//   - DEDUPE_WINDOW_DAYS: Duplicate suppression window (default: 7)
type DiscoveryConfig struct {
	// Interval between scan cycles.
	Interval time.Duration `koanf:"interval"`

	// CycleTimeout is the hard deadline for a single cycle.
	CycleTimeout time.Duration `koanf:"cycle_timeout"`

	// MaxPerCycle caps the number of videos processed in one cycle.
	MaxPerCycle int `koanf:"max_per_cycle"`

	// Tier allocations split the cycle budget between fresh-content search,
	// channel rescanning, and keyword rotation. Must sum to 1.0.
	TierFresh    float64 `koanf:"tier_fresh"`
	TierChannels float64 `koanf:"tier_channels"`
	TierKeywords float64 `koanf:"tier_keywords"`

	// DedupeWindowDays suppresses re-processing of a video discovered within
	// this many days. Older records are refreshed in place.
	DedupeWindowDays int `koanf:"dedupe_window_days"`

	// SkipNoIPMatch drops ingested videos that match no IP target.
	SkipNoIPMatch bool `koanf:"skip_no_ip_match"`

	// TrendingCategories lists platform category ids polled by the trending
	// ingestor. Empty disables trending ingestion.
	TrendingCategories []string `koanf:"trending_categories"`

	// Keyword cooldowns by adaptive priority.
	CooldownHigh   time.Duration `koanf:"cooldown_high"`
	CooldownMedium time.Duration `koanf:"cooldown_medium"`
	CooldownLow    time.Duration `koanf:"cooldown_low"`
}

// RescoreConfig holds risk maintenance settings.
//
// Environment Variables:
//   - RESCORE_INTERVAL: Maintenance tick (default: 15m)
//   - HIGH_RISK_THRESHOLD: Score at which videos are published downstream (default: 70)
type RescoreConfig struct {
	// Interval between rescore ticks.
	Interval time.Duration `koanf:"interval"`

	// BatchSize caps videos rescored per tick.
	BatchSize int `koanf:"batch_size"`

	// HighRiskThreshold is the current_risk score at or above which a video
	// is published to the vision pipeline.
	HighRiskThreshold int `koanf:"high_risk_threshold"`
}

// StoreConfig holds BadgerDB persistence settings.
//
// Environment Variables:
//   - STORE_PATH: Data directory (default: /data/excubitor)
//   - SNAPSHOT_TTL_DAYS: View snapshot retention (default: 30)
type StoreConfig struct {
	// Path is the BadgerDB data directory.
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence. Testing only.
	InMemory bool `koanf:"in_memory"`

	// SnapshotTTLDays is the retention period for view count snapshots.
	SnapshotTTLDays int `koanf:"snapshot_ttl_days"`

	// GCInterval is how often Badger value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is the Badger value-log rewrite threshold (0..1).
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`
}

// NATSConfig holds event transport settings for Watermill/NATS JetStream.
//
// Environment Variables:
//   - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED_SERVER: Run an in-process JetStream server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory
type NATSConfig struct {
	// URL of the NATS server. For the embedded server this supplies the
	// listen host and port.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS JetStream server.
	EmbeddedServer bool `koanf:"embedded_server"`

	// InProcess swaps NATS for an in-memory bus. Events do not survive a
	// restart; intended for development and tests.
	InProcess bool `koanf:"in_process"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory and MaxStore bound embedded JetStream resource usage.
	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// StreamRetentionDays bounds message age in the video intel stream.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// DurableName identifies the risk analyzer's durable consumer.
	DurableName string `koanf:"durable_name"`

	// QueueGroup load-balances analyzer instances.
	QueueGroup string `koanf:"queue_group"`

	// SubscriberCount is the number of subscriber instances per topic.
	SubscriberCount int `koanf:"subscriber_count"`

	// Router middleware settings (Watermill).
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// ServerConfig holds the operational HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 8085)
//   - HTTP_HOST: Listen host (default: 0.0.0.0)
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DedupeWindow returns the duplicate suppression window as a duration.
func (d DiscoveryConfig) DedupeWindow() time.Duration {
	return time.Duration(d.DedupeWindowDays) * 24 * time.Hour
}

// SnapshotTTL returns the snapshot retention period as a duration.
func (s StoreConfig) SnapshotTTL() time.Duration {
	return time.Duration(s.SnapshotTTLDays) * 24 * time.Hour
}
