// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// detectTimeout bounds all probing commands together.
const detectTimeout = 10 * time.Second

// =============================================================================
// ACCELERATOR TYPE
// =============================================================================

// Accelerator is the kind of hardware that will run the local model.
type Accelerator int

const (
	// AcceleratorCPU means no supported accelerator was found.
	AcceleratorCPU Accelerator = iota
	AcceleratorNvidia
	AcceleratorAMD
	AcceleratorAppleSilicon
	// AcceleratorRyzenAI is an AMD XDNA NPU.
	AcceleratorRyzenAI
)

// String returns the display name.
func (a Accelerator) String() string {
	switch a {
	case AcceleratorCPU:
		return "CPU"
	case AcceleratorNvidia:
		return "NVIDIA"
	case AcceleratorAMD:
		return "AMD"
	case AcceleratorAppleSilicon:
		return "Apple Silicon"
	case AcceleratorRyzenAI:
		return "Ryzen AI NPU"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Accelerator) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// =============================================================================
// HARDWARE INFO
// =============================================================================

// Hardware describes the detected accelerator.
type Hardware struct {
	Name        string      `json:"name"`
	Accelerator Accelerator `json:"accelerator"`
	// VramGB is zero when unknown; unified memory on Apple Silicon.
	VramGB uint32 `json:"vram_gb,omitempty"`
	Driver string `json:"driver,omitempty"`
}

// String returns a formatted description.
func (h *Hardware) String() string {
	s := h.Name
	if h.VramGB > 0 {
		s += fmt.Sprintf(" (%dGB)", h.VramGB)
	}
	if h.Driver != "" {
		s += fmt.Sprintf(" [Driver: %s]", h.Driver)
	}
	return s
}

// =============================================================================
// DETECTOR
// =============================================================================

// Detector probes the system. Its hooks are replaceable in tests.
type Detector struct {
	// run executes a command and returns its stdout.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
	// readFile reads a file such as /proc/cpuinfo.
	readFile func(path string) ([]byte, error)
	goos     string
	goarch   string
}

// NewDetector returns a Detector for the running system.
func NewDetector() *Detector {
	return &Detector{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		readFile: os.ReadFile,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
}

// Detect checks, in order, Apple Silicon, NVIDIA, a Ryzen AI NPU and an AMD
// GPU. It never returns nil: with nothing found the result is a CPU entry.
func (d *Detector) Detect(ctx context.Context) *Hardware {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, detectTimeout)
		defer cancel()
	}

	for _, probe := range []func(context.Context) *Hardware{
		d.appleSilicon,
		d.nvidia,
		d.ryzenAI,
		d.amdGPU,
	} {
		if hw := probe(ctx); hw != nil {
			return hw
		}
		if ctx.Err() != nil {
			break
		}
	}
	return &Hardware{Name: d.cpuName(ctx), Accelerator: AcceleratorCPU}
}

var (
	cached     *Hardware
	cachedAt   time.Time
	cacheMu    sync.Mutex
	cacheTTL   = 5 * time.Minute
	defaultDet = NewDetector()
)

// DetectCached returns the system hardware, probing at most once per five
// minutes.
func DetectCached(ctx context.Context) *Hardware {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached != nil && time.Since(cachedAt) < cacheTTL {
		return cached
	}
	cached = defaultDet.Detect(ctx)
	cachedAt = time.Now()
	return cached
}

// =============================================================================
// PROBES
// =============================================================================

func (d *Detector) appleSilicon(ctx context.Context) *Hardware {
	if d.goos != "darwin" || d.goarch != "arm64" {
		return nil
	}
	name := "Apple Silicon"
	if out, err := d.run(ctx, "sysctl", "-n", "machdep.cpu.brand_string"); err == nil {
		if brand := strings.TrimSpace(string(out)); brand != "" {
			name = brand
		}
	}

	hw := &Hardware{Name: name, Accelerator: AcceleratorAppleSilicon}
	if out, err := d.run(ctx, "sysctl", "-n", "hw.memsize"); err == nil {
		if bytes, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64); err == nil {
			hw.VramGB = uint32(bytes / 1_073_741_824)
		}
	}
	return hw
}

// nvidia parses the first line of
// `nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits`.
func (d *Detector) nvidia(ctx context.Context) *Hardware {
	out, err := d.run(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total,driver_version",
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil
	}
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0])
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return nil
	}

	name := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(strings.ToUpper(name), "NVIDIA") {
		name = "NVIDIA " + name
	}
	hw := &Hardware{Name: name, Accelerator: AcceleratorNvidia, Driver: strings.TrimSpace(parts[2])}
	if mib, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
		hw.VramGB = uint32(mib/1024.0 + 0.5)
	}
	return hw
}

func (d *Detector) ryzenAI(ctx context.Context) *Hardware {
	brand := d.cpuName(ctx)
	if !strings.Contains(strings.ToLower(brand), "ryzen ai") {
		return nil
	}
	return &Hardware{Name: brand, Accelerator: AcceleratorRyzenAI}
}

// amdGPU reads the card series from `rocm-smi --showproductname`.
func (d *Detector) amdGPU(ctx context.Context) *Hardware {
	out, err := d.run(ctx, "rocm-smi", "--showproductname")
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if _, series, ok := strings.Cut(line, "Card series:"); ok {
			name := strings.TrimSpace(series)
			if name == "" {
				break
			}
			return &Hardware{Name: "AMD " + strings.TrimPrefix(name, "AMD "), Accelerator: AcceleratorAMD}
		}
	}
	return &Hardware{Name: "AMD GPU", Accelerator: AcceleratorAMD}
}

// cpuName returns the CPU brand string, or the architecture when unknown.
func (d *Detector) cpuName(ctx context.Context) string {
	switch d.goos {
	case "linux":
		if data, err := d.readFile("/proc/cpuinfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if key, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(key) == "model name" {
					return strings.TrimSpace(value)
				}
			}
		}
	case "darwin":
		if out, err := d.run(ctx, "sysctl", "-n", "machdep.cpu.brand_string"); err == nil {
			if brand := strings.TrimSpace(string(out)); brand != "" {
				return brand
			}
		}
	case "windows":
		if id := os.Getenv("PROCESSOR_IDENTIFIER"); id != "" {
			return id
		}
	}
	return "CPU (" + d.goarch + ")"
}
