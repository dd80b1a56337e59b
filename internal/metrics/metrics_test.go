// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Routes.WithLabelValues("LOCAL", "local-direct"))
	Routes.WithLabelValues("LOCAL", "local-direct").Inc()
	if got := testutil.ToFloat64(Routes.WithLabelValues("LOCAL", "local-direct")); got != before+1 {
		t.Errorf("Routes = %v, want %v", got, before+1)
	}

	beforeRetries := testutil.ToFloat64(LocalRetries)
	LocalRetries.Add(2)
	if got := testutil.ToFloat64(LocalRetries); got != beforeRetries+2 {
		t.Errorf("LocalRetries = %v, want %v", got, beforeRetries+2)
	}
}
