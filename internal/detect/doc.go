// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect identifies the local inference accelerator and suggests the
// matching local energy profile.
//
// # Supported Hardware
//
//   - Apple Silicon (via sysctl on macOS)
//   - NVIDIA (via nvidia-smi)
//   - AMD Ryzen AI NPUs (via the CPU brand string)
//   - AMD discrete GPUs (via rocm-smi)
//
// Anything else is reported as CPU.
//
// # Usage
//
//	hw := detect.NewDetector().Detect(ctx)
//	s := detect.Suggest(hw)
//	fmt.Printf("%s -> %s (%s)\n", hw, s.Slug, s.Reason)
package detect
