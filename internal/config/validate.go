// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}

	if err := c.validatePlatform(); err != nil {
		return err
	}

	if err := c.validateQuota(); err != nil {
		return err
	}

	if err := c.validateDiscovery(); err != nil {
		return err
	}

	if err := c.validateRescore(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateCatalog validates the IP target catalog location
func (c *Config) validateCatalog() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}
	return nil
}

// validatePlatform validates the video platform API client configuration
func (c *Config) validatePlatform() error {
	validators := []func() error{
		c.validatePlatformBaseURL,
		c.validatePlatformAPIKey,
		c.validatePlatformTimeout,
		c.validatePlatformSearchResults,
		c.validatePlatformRate,
		c.validatePlatformRetries,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validatePlatformBaseURL validates the platform API base URL
func (c *Config) validatePlatformBaseURL() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	if err := validateBaseURL(c.Platform.BaseURL); err != nil {
		return fmt.Errorf("PLATFORM_BASE_URL is invalid: %w", err)
	}
	return nil
}

// validatePlatformAPIKey validates the platform API key
func (c *Config) validatePlatformAPIKey() error {
	if c.Platform.APIKey == "" {
		return fmt.Errorf("PLATFORM_API_KEY is required")
	}
	return nil
}

// validatePlatformTimeout validates the per-call timeout
func (c *Config) validatePlatformTimeout() error {
	if c.Platform.Timeout < time.Second || c.Platform.Timeout > 5*time.Minute {
		return fmt.Errorf("PLATFORM_TIMEOUT must be between 1s and 5m")
	}
	return nil
}

// validatePlatformSearchResults validates the per-page result cap
func (c *Config) validatePlatformSearchResults() error {
	if c.Platform.MaxSearchResults < 1 || c.Platform.MaxSearchResults > 50 {
		return fmt.Errorf("PLATFORM_MAX_SEARCH_RESULTS must be between 1 and 50")
	}
	return nil
}

// validatePlatformRate validates the client-side rate limit shape
func (c *Config) validatePlatformRate() error {
	if c.Platform.RatePerSecond <= 0 {
		return fmt.Errorf("PLATFORM_RATE_PER_SECOND must be positive")
	}
	if c.Platform.Burst < 1 {
		return fmt.Errorf("PLATFORM_BURST must be at least 1")
	}
	return nil
}

// validatePlatformRetries validates the retry policy bounds
func (c *Config) validatePlatformRetries() error {
	if c.Platform.MaxRetries < 0 || c.Platform.MaxRetries > 10 {
		return fmt.Errorf("PLATFORM_MAX_RETRIES must be between 0 and 10")
	}
	if c.Platform.RetryBaseDelay <= 0 {
		return fmt.Errorf("PLATFORM_RETRY_BASE_DELAY must be positive")
	}
	return nil
}

// validateQuota validates the daily API budget ceilings.
// The rescan sub-budget is a separate ledger and must never exceed the
// discovery ceiling: spending the whole rescan budget plus the whole
// discovery budget must stay within one platform key's daily allowance.
func (c *Config) validateQuota() error {
	if c.Quota.DailyUnits < 1 {
		return fmt.Errorf("DAILY_QUOTA must be at least 1 unit")
	}
	if c.Quota.RescanUnits < 1 {
		return fmt.Errorf("RESCAN_QUOTA must be at least 1 unit")
	}
	if c.Quota.RescanUnits > c.Quota.DailyUnits {
		return fmt.Errorf("RESCAN_QUOTA (%d) must not exceed DAILY_QUOTA (%d)",
			c.Quota.RescanUnits, c.Quota.DailyUnits)
	}
	return nil
}

// Discovery limit constants
const (
	discoveryMinInterval = time.Minute
	discoveryMaxPerCycle = 100000
	tierSumTolerance     = 1e-9
)

// validateDiscovery validates scan cycle orchestration settings
func (c *Config) validateDiscovery() error {
	validators := []func() error{
		c.validateDiscoveryInterval,
		c.validateDiscoveryCycleCap,
		c.validateTierAllocations,
		c.validateDedupeWindow,
		c.validateCooldowns,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateDiscoveryInterval validates the orchestrator tick and cycle deadline
func (c *Config) validateDiscoveryInterval() error {
	if c.Discovery.Interval < discoveryMinInterval {
		return fmt.Errorf("DISCOVERY_INTERVAL must be at least 1m")
	}
	if c.Discovery.CycleTimeout < time.Minute || c.Discovery.CycleTimeout > c.Discovery.Interval {
		return fmt.Errorf("DISCOVERY_CYCLE_TIMEOUT must be between 1m and DISCOVERY_INTERVAL")
	}
	return nil
}

// validateDiscoveryCycleCap validates the per-cycle processing cap
func (c *Config) validateDiscoveryCycleCap() error {
	if c.Discovery.MaxPerCycle < 1 || c.Discovery.MaxPerCycle > discoveryMaxPerCycle {
		return fmt.Errorf("DISCOVERY_MAX_PER_CYCLE must be between 1 and 100000")
	}
	return nil
}

// validateTierAllocations validates that the cycle budget split covers
// exactly the whole budget
func (c *Config) validateTierAllocations() error {
	tiers := map[string]float64{
		"DISCOVERY_TIER_FRESH":    c.Discovery.TierFresh,
		"DISCOVERY_TIER_CHANNELS": c.Discovery.TierChannels,
		"DISCOVERY_TIER_KEYWORDS": c.Discovery.TierKeywords,
	}
	for name, v := range tiers {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0", name)
		}
	}

	sum := c.Discovery.TierFresh + c.Discovery.TierChannels + c.Discovery.TierKeywords
	if math.Abs(sum-1.0) > tierSumTolerance {
		return fmt.Errorf("tier allocations must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// validateDedupeWindow validates the duplicate suppression window
func (c *Config) validateDedupeWindow() error {
	if c.Discovery.DedupeWindowDays < 1 || c.Discovery.DedupeWindowDays > 365 {
		return fmt.Errorf("DEDUPE_WINDOW_DAYS must be between 1 and 365")
	}
	return nil
}

// validateCooldowns validates the keyword cooldown ladder. Higher priority
// keywords must cool down at least as fast as lower priority ones.
func (c *Config) validateCooldowns() error {
	if c.Discovery.CooldownHigh <= 0 || c.Discovery.CooldownMedium <= 0 || c.Discovery.CooldownLow <= 0 {
		return fmt.Errorf("keyword cooldowns must be positive")
	}
	if c.Discovery.CooldownHigh > c.Discovery.CooldownMedium ||
		c.Discovery.CooldownMedium > c.Discovery.CooldownLow {
		return fmt.Errorf("keyword cooldowns must be ordered: KEYWORD_COOLDOWN_HIGH <= KEYWORD_COOLDOWN_MEDIUM <= KEYWORD_COOLDOWN_LOW")
	}
	return nil
}

// validateRescore validates risk maintenance settings
func (c *Config) validateRescore() error {
	if c.Rescore.Interval < time.Minute {
		return fmt.Errorf("RESCORE_INTERVAL must be at least 1m")
	}
	if c.Rescore.BatchSize < 1 || c.Rescore.BatchSize > 1000 {
		return fmt.Errorf("RESCORE_BATCH_SIZE must be between 1 and 1000")
	}
	if c.Rescore.HighRiskThreshold < 0 || c.Rescore.HighRiskThreshold > 100 {
		return fmt.Errorf("HIGH_RISK_THRESHOLD must be between 0 and 100")
	}
	return nil
}

// validateStore validates BadgerDB persistence settings
func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.SnapshotTTLDays < 1 || c.Store.SnapshotTTLDays > 365 {
		return fmt.Errorf("SNAPSHOT_TTL_DAYS must be between 1 and 365")
	}
	if c.Store.GCInterval < time.Minute {
		return fmt.Errorf("STORE_GC_INTERVAL must be at least 1m")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be between 0 and 1 exclusive")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory      = 64 * 1024 * 1024  // 64MB
	natsMinStore       = 100 * 1024 * 1024 // 100MB
	natsMaxRetention   = 365
	natsMinRetention   = 1
	natsMaxSubscribers = 32
)

// validateNATS validates event transport configuration
func (c *Config) validateNATS() error {
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	return c.validateNATSLimits()
}

// validateNATSLimits validates NATS storage and processing limits
func (c *Config) validateNATSLimits() error {
	validators := []func() error{
		c.validateNATSMemory,
		c.validateNATSStore,
		c.validateNATSRetention,
		c.validateNATSSubscribers,
		c.validateNATSRouter,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateNATSMemory validates NATS max memory setting
func (c *Config) validateNATSMemory() error {
	if c.NATS.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	return nil
}

// validateNATSStore validates NATS max store setting
func (c *Config) validateNATSStore() error {
	if c.NATS.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	return nil
}

// validateNATSRetention validates NATS stream retention days
func (c *Config) validateNATSRetention() error {
	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}
	return nil
}

// validateNATSSubscribers validates NATS subscribers count
func (c *Config) validateNATSSubscribers() error {
	if c.NATS.SubscriberCount < 1 || c.NATS.SubscriberCount > natsMaxSubscribers {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and 32")
	}
	return nil
}

// validateNATSRouter validates Watermill router middleware settings
func (c *Config) validateNATSRouter() error {
	if c.NATS.RouterRetryCount < 0 || c.NATS.RouterRetryCount > 10 {
		return fmt.Errorf("NATS_ROUTER_RETRY_COUNT must be between 0 and 10")
	}
	if c.NATS.RouterPoisonQueueEnabled && c.NATS.RouterPoisonQueueTopic == "" {
		return fmt.Errorf("NATS_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}
	if c.NATS.RouterCloseTimeout < time.Second {
		return fmt.Errorf("NATS_ROUTER_CLOSE_TIMEOUT must be at least 1s")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s")
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// validateBaseURL validates that a URL is properly formatted for an HTTP API
// base. A path component is allowed (versioned API roots), query parameters
// are not.
func validateBaseURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required")
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("should not contain query parameters, remove: ?%s", parsedURL.RawQuery)
	}

	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, 192.168.1.100:4222, nats.example.com)")
	}

	return nil
}
