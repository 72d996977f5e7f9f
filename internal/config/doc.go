// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package config provides centralized configuration management for Excubitor.

Configuration is loaded through Koanf v2 with three layered sources, later
layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML config file (config.yaml, or CONFIG_PATH override)
 3. Environment variables

# Environment Variables

Variables are organized by component:

Catalog:
  - CATALOG_PATH: IP target catalog YAML file (default: catalog.yaml)

Platform API (PlatformConfig):
  - PLATFORM_BASE_URL: API base URL
  - PLATFORM_API_KEY: API key (required)
  - PLATFORM_TIMEOUT: Per-call timeout (default: 30s)
  - PLATFORM_REGION: Region code for search/trending (default: US)

Quota (QuotaConfig):
  - DAILY_QUOTA: Discovery ledger ceiling in units (default: 10000)
  - RESCAN_QUOTA: Rescore sub-budget in units (default: 2000)

Discovery (DiscoveryConfig):
  - DISCOVERY_INTERVAL: Scan cycle tick (default: 1h)
  - DISCOVERY_MAX_PER_CYCLE: Videos per cycle cap (default: 2000)
  - DEDUPE_WINDOW_DAYS: Duplicate suppression window (default: 7)
  - TRENDING_CATEGORIES: Comma-separated category ids (default: 1,20,24)

Rescore (RescoreConfig):
  - RESCORE_INTERVAL: Risk maintenance tick (default: 15m)
  - HIGH_RISK_THRESHOLD: Downstream publish threshold (default: 70)

Store (StoreConfig):
  - STORE_PATH: BadgerDB data directory (default: /data/excubitor)
  - SNAPSHOT_TTL_DAYS: View snapshot retention (default: 30)

NATS (NATSConfig):
  - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
  - NATS_EMBEDDED: Run an in-process JetStream server (default: true)

Server (ServerConfig):
  - HTTP_HOST / HTTP_PORT: Ops HTTP listen address (default: 0.0.0.0:8085)
  - ENVIRONMENT: development or production

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)

# Validation

Load-time validation rejects misconfigured deployments before any platform
quota is spent: required fields (PLATFORM_API_KEY, CATALOG_PATH), numeric
ranges (HTTP_PORT 1-65535, HIGH_RISK_THRESHOLD 0-100), cross-field rules
(tier allocations must sum to 1.0, RESCAN_QUOTA must not exceed DAILY_QUOTA,
keyword cooldowns must be ordered fastest-to-slowest by priority), and URL
formats for the platform and NATS endpoints.

# Thread Safety

The Config struct is immutable after LoadWithKoanf() returns, making it safe
for concurrent access from multiple goroutines without synchronization.
*/
package config
