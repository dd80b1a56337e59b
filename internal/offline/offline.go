// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned when a non-loopback URL is used in offline mode.
	ErrNonLocalhost = errors.New("offline mode: only localhost connections are allowed")

	// ErrCloudBlocked is returned when the cloud backend is used in offline mode.
	ErrCloudBlocked = errors.New("offline mode: cloud backend disabled")

	// ErrRealtimeBlocked is returned when a real-time provider is used in offline mode.
	ErrRealtimeBlocked = errors.New("offline mode: real-time data providers disabled")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")

	// ErrInvalidURL is returned when a URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

// offlineMode is process-wide; config reloads in `seven serve` flip it while
// requests are in flight.
var offlineMode atomic.Bool

// SetOfflineMode enables or disables offline mode globally.
func SetOfflineMode(enabled bool) {
	offlineMode.Store(enabled)
}

// IsOfflineMode reports whether offline mode is on.
func IsOfflineMode() bool {
	return offlineMode.Load()
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost reports whether host (optionally with port or brackets) is a
// loopback name or address.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks the scheme of rawURL and, in offline mode, that it
// points at a loopback host. The scheme check applies in both modes.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if IsOfflineMode() && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// =============================================================================
// FEATURE GUARDS
// =============================================================================

// CheckCloudAllowed returns ErrCloudBlocked in offline mode.
func CheckCloudAllowed() error { return guard(ErrCloudBlocked) }

// CheckRealtimeAllowed returns ErrRealtimeBlocked in offline mode.
func CheckRealtimeAllowed() error { return guard(ErrRealtimeBlocked) }

func guard(blocked error) error {
	if offlineMode.Load() {
		return blocked
	}
	return nil
}

// StatusBadge returns "[OFFLINE]" when offline, empty string otherwise.
func StatusBadge() string {
	if IsOfflineMode() {
		return "[OFFLINE]"
	}
	return ""
}
