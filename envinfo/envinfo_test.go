package envinfo

import (
	"errors"
	"net/http/httptest"
	"os"
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbes replaces the probes for the duration of the test.
func stubProbes(t *testing.T) {
	t.Helper()

	prevNow, prevHostname, prevExecutable := now, hostname, executable
	prevReadBuildInfo, prevReadFile, prevStartedAt := readBuildInfo, readFile, startedAt
	t.Cleanup(func() {
		now, hostname, executable = prevNow, prevHostname, prevExecutable
		readBuildInfo, readFile, startedAt = prevReadBuildInfo, prevReadFile, prevStartedAt
	})

	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	now = func() time.Time { return fixed }
	startedAt = fixed.Add(-90 * time.Second)
}

func TestCollect(t *testing.T) {
	stubProbes(t)
	hostname = func() (string, error) { return "box", nil }
	executable = func() (string, error) { return "/usr/bin/app", nil }
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Path: "example.com/app", Version: "v1.2.3"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "-ldflags", Value: "-s -w"},
			},
		}, true
	}
	readFile = func(name string) ([]byte, error) {
		assert.Equal(t, cgroupMemoryMax, name)
		return []byte("536870912\n"), nil
	}

	info := Collect()

	assert.Equal(t, "2024-05-06T07:08:09Z", info.Timestamp)
	assert.Equal(t, "UTC", info.Timezone)
	assert.Equal(t, os.Getpid(), info.Process.PID)
	assert.Equal(t, "/usr/bin/app", info.Process.Executable)
	assert.Equal(t, "1m30s", info.Process.Uptime)
	assert.Equal(t, Host{Hostname: "box", OS: runtime.GOOS, Arch: runtime.GOARCH, CPUs: runtime.NumCPU()}, info.Host)
	assert.Equal(t, runtime.Version(), info.Runtime.GoVersion)
	require.NotNil(t, info.Runtime.Memory)
	assert.Greater(t, info.Runtime.Memory.SysMB, float64(0))

	require.NotNil(t, info.Build)
	assert.Equal(t, &Build{
		Path:     "example.com/app",
		Version:  "v1.2.3",
		Settings: map[string]string{"vcs.revision": "abc123"},
	}, info.Build)

	require.NotNil(t, info.Container)
	require.NotNil(t, info.Container.MemoryLimitMB)
	assert.Equal(t, float64(512), *info.Container.MemoryLimitMB)
}

func TestCollectDegradesGracefully(t *testing.T) {
	stubProbes(t)
	hostname = func() (string, error) { return "", errors.New("no hostname") }
	executable = func() (string, error) { return "", errors.New("no executable") }
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	readFile = func(string) ([]byte, error) { return nil, os.ErrNotExist }

	info := Collect()

	assert.Empty(t, info.Host.Hostname)
	assert.Empty(t, info.Process.Executable)
	assert.Nil(t, info.Build)
	assert.Nil(t, info.Container)
	assert.Equal(t, runtime.GOOS, info.Host.OS)
}

func TestCollectUnlimitedContainer(t *testing.T) {
	stubProbes(t)
	readFile = func(string) ([]byte, error) { return []byte("max\n"), nil }

	info := Collect()

	require.NotNil(t, info.Container)
	assert.Nil(t, info.Container.MemoryLimitMB)
}

func TestFromRequest(t *testing.T) {
	t.Run("all hints", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/feedback", nil)
		r.Header.Set("Referer", "https://app.example.com/settings")
		r.Header.Set("User-Agent", "Mozilla/5.0")
		r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
		r.Header.Set("Sec-CH-UA-Platform", `"macOS"`)
		r.Header.Set("Sec-CH-Viewport-Width", "1280")
		r.Header.Set("Sec-CH-DPR", "2")
		r.Header.Set("Device-Memory", "8")
		r.Header.Set("Downlink", "10.5")
		r.Header.Set("RTT", "50")
		r.Header.Set("ECT", "4g")
		r.Header.Set("Save-Data", "on")

		c := FromRequest(r)

		width, dpr, memory, downlink, rtt := 1280, 2.0, 8.0, 10.5, 50
		assert.Equal(t, Client{
			Page:           Page{URL: "https://app.example.com/settings"},
			UserAgent:      "Mozilla/5.0",
			Language:       "pt-BR",
			Platform:       "macOS",
			Viewport:       &Viewport{W: &width, DPR: &dpr},
			DeviceMemoryGB: &memory,
			Connection:     &Connection{Downlink: &downlink, RTT: &rtt, EffectiveType: "4g", SaveData: true},
		}, c)
	})

	t.Run("no hints", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/feedback", nil)
		r.Header.Set("User-Agent", "curl/8.0")

		c := FromRequest(r)

		assert.Equal(t, Client{UserAgent: "curl/8.0"}, c)
	})
}
