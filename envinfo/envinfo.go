// Package envinfo gathers the diagnostic context attached to a feedback report.
//
// Every probe is optional: when a capability is not available the corresponding field
// is left empty and collection carries on.
package envinfo

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Info describes the process that collected the report.
type Info struct {
	Timestamp string     `json:"timestamp"`
	Timezone  string     `json:"timezone"`
	Process   Process    `json:"process"`
	Host      Host       `json:"host"`
	Runtime   Runtime    `json:"runtime"`
	Build     *Build     `json:"build,omitempty"`
	Container *Container `json:"container,omitempty"`
}

// Process holds the process identity.
type Process struct {
	PID        int    `json:"pid"`
	Executable string `json:"executable,omitempty"`
	Args       int    `json:"args"`
	Uptime     string `json:"uptime,omitempty"`
}

// Host holds the machine the process runs on.
type Host struct {
	Hostname string `json:"hostname,omitempty"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	CPUs     int    `json:"cpus"`
}

// Runtime holds the Go runtime state.
type Runtime struct {
	GoVersion  string  `json:"goVersion"`
	Goroutines int     `json:"goroutines"`
	Memory     *Memory `json:"memory,omitempty"`
}

// Memory is a subset of runtime.MemStats in megabytes.
type Memory struct {
	HeapAllocMB float64 `json:"heapAllocMB"`
	SysMB       float64 `json:"sysMB"`
	NumGC       uint32  `json:"numGC"`
}

// Build holds the module build information, if the binary carries it.
type Build struct {
	Path     string            `json:"path,omitempty"`
	Version  string            `json:"version,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

// Container holds cgroup limits, if the process runs under cgroup v2.
type Container struct {
	MemoryLimitMB *float64 `json:"memoryLimitMB,omitempty"`
}

// Probes used by Collect, replaceable in tests.
var (
	now           = time.Now
	hostname      = os.Hostname
	executable    = os.Executable
	readBuildInfo = debug.ReadBuildInfo
	readFile      = os.ReadFile
	startedAt     = time.Now()
)

const cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// buildSettings are the build settings worth reporting, the rest is noise for a bug report.
var buildSettings = []string{"vcs.revision", "vcs.time", "vcs.modified", "GOOS", "GOARCH"}

// Collect gathers the environment information. It never fails.
func Collect() Info {
	t := now()
	tz, _ := t.Zone()
	if loc := t.Location().String(); loc != "Local" && loc != "" {
		tz = loc
	}

	info := Info{
		Timestamp: t.UTC().Format(time.RFC3339),
		Timezone:  tz,
		Process: Process{
			PID:    os.Getpid(),
			Args:   len(os.Args),
			Uptime: t.Sub(startedAt).Round(time.Second).String(),
		},
		Host: Host{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
			CPUs: runtime.NumCPU(),
		},
		Runtime: Runtime{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			Memory:     memory(),
		},
		Build:     build(),
		Container: container(),
	}

	if name, err := hostname(); err == nil {
		info.Host.Hostname = name
	}
	if exe, err := executable(); err == nil {
		info.Process.Executable = exe
	}
	return info
}

func memory() *Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &Memory{
		HeapAllocMB: megabytes(ms.HeapAlloc),
		SysMB:       megabytes(ms.Sys),
		NumGC:       ms.NumGC,
	}
}

func build() *Build {
	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		return nil
	}

	b := &Build{Path: bi.Main.Path, Version: bi.Main.Version}
	for _, s := range bi.Settings {
		for _, wanted := range buildSettings {
			if s.Key == wanted {
				if b.Settings == nil {
					b.Settings = make(map[string]string)
				}
				b.Settings[s.Key] = s.Value
			}
		}
	}
	return b
}

func container() *Container {
	data, err := readFile(cgroupMemoryMax)
	if err != nil {
		return nil
	}

	raw := strings.TrimSpace(string(data))
	if raw == "max" {
		return &Container{}
	}
	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	mb := megabytes(limit)
	return &Container{MemoryLimitMB: &mb}
}

func megabytes(b uint64) float64 {
	return float64(b) / (1 << 20)
}
