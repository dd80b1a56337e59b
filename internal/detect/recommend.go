// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import "strings"

// Suggestion is the local energy profile that best matches the hardware.
type Suggestion struct {
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}

// Suggest maps detected hardware to a local energy profile slug.
func Suggest(hw *Hardware) Suggestion {
	if hw == nil {
		return Suggestion{Slug: "cpu_legacy", Reason: "no hardware information"}
	}

	switch hw.Accelerator {
	case AcceleratorAppleSilicon:
		return Suggestion{Slug: "npu_apple_ane", Reason: "Apple Silicon runs small models on the Neural Engine"}
	case AcceleratorRyzenAI:
		return Suggestion{Slug: "npu_ryzen_ai", Reason: "Ryzen AI processors carry an XDNA NPU"}
	case AcceleratorNvidia:
		name := strings.ToUpper(hw.Name)
		switch {
		case strings.Contains(name, "H100"), strings.Contains(name, "H200"):
			return Suggestion{Slug: "gpu_h100", Reason: "Hopper datacenter GPU"}
		case strings.Contains(name, "A100"):
			return Suggestion{Slug: "gpu_a100", Reason: "Ampere datacenter GPU"}
		}
		return Suggestion{Slug: "gpu_laptop_high", Reason: "discrete NVIDIA GPU"}
	case AcceleratorAMD:
		return Suggestion{Slug: "gpu_laptop_high", Reason: "discrete AMD GPU"}
	default:
		return Suggestion{Slug: "cpu_legacy", Reason: "no accelerator found; inference runs on the CPU"}
	}
}
