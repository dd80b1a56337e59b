// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"testing"
)

func withOffline(t *testing.T, enabled bool) {
	t.Helper()
	original := IsOfflineMode()
	SetOfflineMode(enabled)
	t.Cleanup(func() { SetOfflineMode(original) })
}

func TestSetOfflineMode(t *testing.T) {
	withOffline(t, true)
	if !IsOfflineMode() {
		t.Error("IsOfflineMode should return true after SetOfflineMode(true)")
	}

	SetOfflineMode(false)
	if IsOfflineMode() {
		t.Error("IsOfflineMode should return false after SetOfflineMode(false)")
	}
}

func TestIsOfflineMode_ThreadSafe(t *testing.T) {
	withOffline(t, false)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				SetOfflineMode(j%2 == 0)
				_ = IsOfflineMode()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"localhost:8000", true},
		{"127.0.0.1", true},
		{"127.8.9.10", true},
		{"::1", true},
		{"[::1]:8000", true},
		{"0:0:0:0:0:0:0:1", true},
		{"api.openai.com", false},
		{"10.0.0.1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsLocalhost(tt.host); got != tt.want {
			t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		offline bool
		url     string
		wantErr error
	}{
		{"online remote", false, "https://api.openai.com/v1", nil},
		{"online local", false, "http://localhost:8000/api/v1", nil},
		{"file scheme online", false, "file:///etc/passwd", ErrInvalidURLScheme},
		{"offline local", true, "http://127.0.0.1:8000/api/v1", nil},
		{"offline remote", true, "https://api.openai.com/v1", ErrNonLocalhost},
		{"offline bad scheme", true, "ftp://localhost/x", ErrInvalidURLScheme},
		{"unparseable", false, "http://[::1", ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withOffline(t, tt.offline)
			err := ValidateURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestFeatureGuards(t *testing.T) {
	withOffline(t, false)
	if err := CheckCloudAllowed(); err != nil {
		t.Errorf("CheckCloudAllowed online = %v", err)
	}
	if err := CheckRealtimeAllowed(); err != nil {
		t.Errorf("CheckRealtimeAllowed online = %v", err)
	}
	if StatusBadge() != "" {
		t.Error("StatusBadge should be empty online")
	}

	SetOfflineMode(true)
	if !errors.Is(CheckCloudAllowed(), ErrCloudBlocked) {
		t.Error("cloud should be blocked offline")
	}
	if !errors.Is(CheckRealtimeAllowed(), ErrRealtimeBlocked) {
		t.Error("realtime should be blocked offline")
	}
	if StatusBadge() != "[OFFLINE]" {
		t.Errorf("StatusBadge = %q", StatusBadge())
	}
}
