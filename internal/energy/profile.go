// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package energy

import (
	"fmt"
	"strings"
)

// ============================================================================
// PROFILE TYPE
// ============================================================================

// Kind distinguishes the two profile registries.
type Kind int

const (
	// KindLocal covers on-device and self-hosted hardware.
	KindLocal Kind = iota
	// KindCloud covers hosted frontier model tiers.
	KindCloud
)

// String returns the registry name.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindCloud:
		return "cloud"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Profile holds normalized energy coefficients for one tier.
// A zero coefficient means the figure is not published for that tier.
type Profile struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Kind  Kind   `json:"-"`

	PerTokenJ    float64 `json:"per_token_j,omitempty"`
	PerTokenJMin float64 `json:"per_token_j_min,omitempty"`
	PerTokenJMax float64 `json:"per_token_j_max,omitempty"`

	PerQueryWh    float64 `json:"per_query_wh,omitempty"`
	PerQueryWhMin float64 `json:"per_query_wh_min,omitempty"`
	PerQueryWhMax float64 `json:"per_query_wh_max,omitempty"`

	Source string `json:"source"`
	Note   string `json:"note"`
}

// HasCoefficients reports whether the profile can produce an estimate.
func (p Profile) HasCoefficients() bool {
	return p.PerTokenJ > 0 || p.PerQueryWh > 0
}

// ============================================================================
// REGISTRIES
// ============================================================================

const (
	// DefaultLocalProfile is used when no local slug is configured or the slug is unknown.
	DefaultLocalProfile = "npu_ryzen_ai"
	// DefaultCloudProfile is used when no cloud slug is configured or the slug is unknown.
	DefaultCloudProfile = "gpt4o_short"
)

var cloudProfiles = []Profile{
	{
		Slug: "gpt4o_short", Label: "GPT-4o short prompt (Jegham 2025)", Kind: KindCloud,
		PerTokenJ: 3.10, PerTokenJMin: 2.50, PerTokenJMax: 3.50,
		PerQueryWh: 0.43,
		Source:     "Jegham 2025 infra-aware estimate",
		Note:       "Upper-bound for short GPT-4o prompts including infra overhead.",
	},
	{
		Slug: "cloud_generic", Label: "Generic GPT-4-class cloud call", Kind: KindCloud,
		PerTokenJ: 2.50, PerTokenJMin: 2.0, PerTokenJMax: 3.0,
		PerQueryWh: 0.34, PerQueryWhMin: 0.30, PerQueryWhMax: 0.40,
		Source: "OpenAI leadership remarks + independent infra studies",
		Note:   "Use when the exact frontier model is unknown.",
	},
	{
		Slug: "gemini_text", Label: "Gemini Apps text (official median)", Kind: KindCloud,
		PerTokenJ: 1.73, PerQueryWh: 0.24,
		Source: "Google TPUv5 sustainability report",
		Note:   "Median text-only prompt including infra overhead.",
	},
	{
		Slug: "gpt5_instant", Label: "GPT-5.1 Instant (working estimate)", Kind: KindCloud,
		PerTokenJ: 0.75, PerTokenJMin: 0.40, PerTokenJMax: 1.10,
		Source: "Pricing-derived assumption",
		Note:   "Estimate derived from Instant-mode pricing vs. GPT-4 tokens.",
	},
	{
		Slug: "gpt5_thinking", Label: "GPT-5.1 Thinking (working estimate)", Kind: KindCloud,
		PerTokenJ: 2.5, PerTokenJMin: 2.0, PerTokenJMax: 3.0,
		Source: "Architecture + pricing assumption",
		Note:   "Use for complex GPT-5.1 calls comparable to GPT-4o load.",
	},
	{
		Slug: "claude_sonnet_short", Label: "Claude 3.7 Sonnet short prompts", Kind: KindCloud,
		PerQueryWh: 0.836, PerQueryWhMin: 0.734, PerQueryWhMax: 0.938,
		Source: `"How Hungry is AI?" (Jegham 2025)`,
		Note:   "Third-party estimate; Anthropic has not published official metrics.",
	},
	{
		Slug: "claude_sonnet_medium", Label: "Claude 3.7 Sonnet medium prompts", Kind: KindCloud,
		PerQueryWh: 2.781, PerQueryWhMin: 2.504, PerQueryWhMax: 3.058,
		Source: `"How Hungry is AI?" (Jegham 2025)`,
		Note:   "Third-party estimate for medium-length prompts.",
	},
	{
		Slug: "claude_sonnet_long", Label: "Claude 3.7 Sonnet long prompts", Kind: KindCloud,
		PerQueryWh: 5.518, PerQueryWhMin: 4.767, PerQueryWhMax: 6.269,
		Source: `"How Hungry is AI?" (Jegham 2025)`,
		Note:   "Third-party estimate for long/complex prompts.",
	},
}

var localProfiles = []Profile{
	{
		Slug: "npu_ryzen_ai", Label: "Ryzen AI / XDNA 2 NPU (1–3B SLM)", Kind: KindLocal,
		PerTokenJ: 0.85, PerTokenJMin: 0.40, PerTokenJMax: 1.30,
		Source: "AMD XDNA 2 datasheets + aggregated NPU vs GPU studies",
		Note:   "Baseline for local deployments targeting 1–3B models.",
	},
	{
		Slug: "npu_apple_ane", Label: "Apple Neural Engine (A17/M4 era)", Kind: KindLocal,
		PerTokenJ: 0.90, PerTokenJMin: 0.45, PerTokenJMax: 1.40,
		Source: "Academic NPU vs GPU comparisons (35–70% less power)",
		Note:   "Use for Apple Silicon clients when ANE handles inference.",
	},
	{
		Slug: "gpu_laptop_high", Label: "Laptop dGPU (RTX 40/50 class)", Kind: KindLocal,
		PerTokenJ: 1.60, PerTokenJMin: 0.60, PerTokenJMax: 4.00,
		Source: "Inference scaling from A100/H100 vs. mobile GPUs",
		Note:   "Represents high-end laptop GPUs running 7–14B models locally.",
	},
	{
		Slug: "gpu_a100", Label: "Datacenter GPU (A100, LLaMA-65B proxy)", Kind: KindLocal,
		PerTokenJ: 3.50, PerTokenJMin: 3.0, PerTokenJMax: 4.0,
		Source: `Samsi et al., "From Words to Watts"`,
		Note:   "Legacy GPT-3/4-class deployments on NVIDIA A100.",
	},
	{
		Slug: "gpu_h100", Label: "Datacenter GPU (H100 FP8, 70B proxy)", Kind: KindLocal,
		PerTokenJ: 0.35, PerTokenJMin: 0.30, PerTokenJMax: 0.40,
		Source: "LLM-Tracker H100 benchmarks",
		Note:   "≈10× more efficient than 2023 A100 figures.",
	},
	{
		Slug: "cpu_legacy", Label: "Legacy CPU-heavy inference", Kind: KindLocal,
		PerTokenJ: 45.0, PerTokenJMin: 40.0, PerTokenJMax: 50.0,
		Source: "Li et al. GPT-3 CPU energy studies",
		Note:   "Worst-case baseline for early GPT-3-era CPU clusters.",
	},
}

var (
	localIndex = indexProfiles(localProfiles)
	cloudIndex = indexProfiles(cloudProfiles)
)

func indexProfiles(profiles []Profile) map[string]Profile {
	idx := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		idx[p.Slug] = p
	}
	return idx
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ============================================================================
// LOOKUP
// ============================================================================

// LookupLocal returns the local profile for slug and whether it exists.
func LookupLocal(slug string) (Profile, bool) {
	p, ok := localIndex[normalizeSlug(slug)]
	return p, ok
}

// LookupCloud returns the cloud profile for slug and whether it exists.
func LookupCloud(slug string) (Profile, bool) {
	p, ok := cloudIndex[normalizeSlug(slug)]
	return p, ok
}

// LocalProfile resolves slug, falling back to DefaultLocalProfile.
func LocalProfile(slug string) Profile {
	if p, ok := LookupLocal(slug); ok {
		return p
	}
	return localIndex[DefaultLocalProfile]
}

// CloudProfile resolves slug, falling back to DefaultCloudProfile.
func CloudProfile(slug string) Profile {
	if p, ok := LookupCloud(slug); ok {
		return p
	}
	return cloudIndex[DefaultCloudProfile]
}

// ListLocal returns the local registry in display order.
func ListLocal() []Profile {
	out := make([]Profile, len(localProfiles))
	copy(out, localProfiles)
	return out
}

// ListCloud returns the cloud registry in display order.
func ListCloud() []Profile {
	out := make([]Profile, len(cloudProfiles))
	copy(out, cloudProfiles)
	return out
}

// Describe returns a one-line summary for CLI and log output.
func Describe(p Profile) string {
	tokenDescr := "N/A"
	if p.PerTokenJ > 0 {
		tokenDescr = fmt.Sprintf("%g J/token", p.PerTokenJ)
	}
	queryDescr := "N/A"
	if p.PerQueryWh > 0 {
		queryDescr = fmt.Sprintf("%g Wh/query", p.PerQueryWh)
	}
	return fmt.Sprintf("%s: %s, %s (source: %s)", p.Label, tokenDescr, queryDescr, p.Source)
}

// ============================================================================
// CATALOG
// ============================================================================

// Catalog resolves profile slugs for the annotator.
type Catalog interface {
	Local(slug string) (Profile, error)
	Cloud(slug string) (Profile, error)
}

// Registry is the Catalog backed by the built-in tables.
// Unknown slugs silently resolve to the defaults, so it never fails.
type Registry struct{}

// Local implements Catalog.
func (Registry) Local(slug string) (Profile, error) {
	return LocalProfile(slug), nil
}

// Cloud implements Catalog.
func (Registry) Cloud(slug string) (Profile, error) {
	return CloudProfile(slug), nil
}
