// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector answers commands from a table keyed by the joined command line.
func fakeDetector(goos, goarch string, outputs map[string]string, cpuinfo string) *Detector {
	return &Detector{
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			key := strings.Join(append([]string{name}, args...), " ")
			if out, ok := outputs[key]; ok {
				return []byte(out), nil
			}
			return nil, errors.New("executable file not found in $PATH")
		},
		readFile: func(path string) ([]byte, error) {
			if path == "/proc/cpuinfo" && cpuinfo != "" {
				return []byte(cpuinfo), nil
			}
			return nil, errors.New("no such file")
		},
		goos:   goos,
		goarch: goarch,
	}
}

const nvidiaQuery = "nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits"

func TestDetectNvidia(t *testing.T) {
	d := fakeDetector("linux", "amd64", map[string]string{
		nvidiaQuery: "NVIDIA GeForce RTX 4090, 24564, 550.54\nNVIDIA GeForce RTX 4090, 24564, 550.54\n",
	}, "")

	hw := d.Detect(context.Background())
	require.NotNil(t, hw)
	assert.Equal(t, AcceleratorNvidia, hw.Accelerator)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", hw.Name)
	assert.Equal(t, uint32(24), hw.VramGB)
	assert.Equal(t, "550.54", hw.Driver)
	assert.Equal(t, "NVIDIA GeForce RTX 4090 (24GB) [Driver: 550.54]", hw.String())
}

func TestDetectNvidiaAddsVendorPrefix(t *testing.T) {
	d := fakeDetector("linux", "amd64", map[string]string{
		nvidiaQuery: "Tesla T4, 15360, 535.1",
	}, "")

	hw := d.Detect(context.Background())
	assert.Equal(t, "NVIDIA Tesla T4", hw.Name)
	assert.Equal(t, uint32(15), hw.VramGB)
}

func TestDetectAppleSilicon(t *testing.T) {
	d := fakeDetector("darwin", "arm64", map[string]string{
		"sysctl -n machdep.cpu.brand_string": "Apple M4 Pro\n",
		"sysctl -n hw.memsize":               "25769803776\n",
	}, "")

	hw := d.Detect(context.Background())
	assert.Equal(t, AcceleratorAppleSilicon, hw.Accelerator)
	assert.Equal(t, "Apple M4 Pro", hw.Name)
	assert.Equal(t, uint32(24), hw.VramGB)
}

func TestDetectRyzenAI(t *testing.T) {
	cpuinfo := "processor\t: 0\nvendor_id\t: AuthenticAMD\nmodel name\t: AMD Ryzen AI 9 HX 370 w/ Radeon 890M\n"
	d := fakeDetector("linux", "amd64", nil, cpuinfo)

	hw := d.Detect(context.Background())
	assert.Equal(t, AcceleratorRyzenAI, hw.Accelerator)
	assert.Equal(t, "AMD Ryzen AI 9 HX 370 w/ Radeon 890M", hw.Name)
}

func TestDetectAMDGPU(t *testing.T) {
	d := fakeDetector("linux", "amd64", map[string]string{
		"rocm-smi --showproductname": "GPU[0]\t\t: Card series:\t\tRadeon RX 7900 XTX\nGPU[0]\t\t: Card vendor:\t\tAMD\n",
	}, "model name\t: AMD Ryzen 9 7950X\n")

	hw := d.Detect(context.Background())
	assert.Equal(t, AcceleratorAMD, hw.Accelerator)
	assert.Equal(t, "AMD Radeon RX 7900 XTX", hw.Name)
}

func TestDetectFallsBackToCPU(t *testing.T) {
	d := fakeDetector("linux", "amd64", nil, "model name\t: Intel(R) Core(TM) i7-8700 CPU @ 3.20GHz\n")

	hw := d.Detect(context.Background())
	assert.Equal(t, AcceleratorCPU, hw.Accelerator)
	assert.Equal(t, "Intel(R) Core(TM) i7-8700 CPU @ 3.20GHz", hw.Name)
	assert.Equal(t, "Intel(R) Core(TM) i7-8700 CPU @ 3.20GHz", hw.String())
}

func TestDetectUnknownCPU(t *testing.T) {
	d := fakeDetector("plan9", "386", nil, "")
	hw := d.Detect(context.Background())
	assert.Equal(t, "CPU (386)", hw.Name)
}

func TestDetectMalformedNvidiaOutput(t *testing.T) {
	d := fakeDetector("linux", "amd64", map[string]string{nvidiaQuery: "garbage"}, "")
	hw := d.Detect(context.Background())
	assert.Equal(t, AcceleratorCPU, hw.Accelerator)
}

func TestDetectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := fakeDetector("linux", "amd64", nil, "model name\t: Some CPU\n")
	hw := d.Detect(ctx)
	require.NotNil(t, hw)
	assert.Equal(t, AcceleratorCPU, hw.Accelerator)
}

func TestAcceleratorString(t *testing.T) {
	assert.Equal(t, "CPU", AcceleratorCPU.String())
	assert.Equal(t, "NVIDIA", AcceleratorNvidia.String())
	assert.Equal(t, "AMD", AcceleratorAMD.String())
	assert.Equal(t, "Apple Silicon", AcceleratorAppleSilicon.String())
	assert.Equal(t, "Ryzen AI NPU", AcceleratorRyzenAI.String())
	assert.Equal(t, "Unknown", Accelerator(99).String())
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name string
		hw   *Hardware
		want string
	}{
		{"nil", nil, "cpu_legacy"},
		{"cpu", &Hardware{Name: "Intel i7", Accelerator: AcceleratorCPU}, "cpu_legacy"},
		{"apple", &Hardware{Name: "Apple M3", Accelerator: AcceleratorAppleSilicon}, "npu_apple_ane"},
		{"ryzen ai", &Hardware{Name: "AMD Ryzen AI 7", Accelerator: AcceleratorRyzenAI}, "npu_ryzen_ai"},
		{"h100", &Hardware{Name: "NVIDIA H100 80GB HBM3", Accelerator: AcceleratorNvidia}, "gpu_h100"},
		{"a100", &Hardware{Name: "NVIDIA A100-SXM4-40GB", Accelerator: AcceleratorNvidia}, "gpu_a100"},
		{"geforce", &Hardware{Name: "NVIDIA GeForce RTX 4070 Laptop GPU", Accelerator: AcceleratorNvidia}, "gpu_laptop_high"},
		{"radeon", &Hardware{Name: "AMD Radeon RX 7900", Accelerator: AcceleratorAMD}, "gpu_laptop_high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Suggest(tt.hw)
			assert.Equal(t, tt.want, s.Slug)
			assert.NotEmpty(t, s.Reason)
		})
	}
}
