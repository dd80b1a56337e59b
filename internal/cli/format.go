// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"math"
	"strconv"
)

// formatTokens renders a reported token count, or N/A when none was reported.
func formatTokens(tokens *int) string {
	if tokens == nil {
		return "N/A"
	}
	return strconv.Itoa(*tokens)
}

// formatWh picks mWh, Wh or kWh so per-query figures stay readable.
func formatWh(wh float64) string {
	switch abs := math.Abs(wh); {
	case abs >= 1000:
		return fmt.Sprintf("%.2f kWh", wh/1000)
	case abs >= 1 || abs == 0:
		return fmt.Sprintf("%.2f Wh", wh)
	default:
		return fmt.Sprintf("%.2f mWh", wh*1000)
	}
}
