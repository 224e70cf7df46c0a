package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/config"
)

func writeConfig(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "plancal.yaml")
	body := fmt.Sprintf(`timezone: UTC
store:
  backend: file
  dir: %s
  watch: false
log:
  level: error
  format: console
`, dataDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	exportOutput, snapshotOutput, snapshotMonth, listenAddr = "", "", "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExportWritesSeedCalendar(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := execute(t, "export", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Team sync")

	file := filepath.Join(t.TempDir(), "out.ics")
	_, err = execute(t, "export", "--config", cfgPath, "-o", file)
	require.NoError(t, err)
	body, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "END:VCALENDAR")
}

func TestImportFromFile(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:imported-1",
		"DTSTAMP:20250101T000000Z",
		"DTSTART:" + start.Format("20060102T150405Z"),
		"DTEND:" + start.Add(time.Hour).Format("20060102T150405Z"),
		"SUMMARY:Imported review",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	icsPath := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(feed), 0o600))

	out, err := execute(t, "import", icsPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 events, skipped 0")

	out, err = execute(t, "import", icsPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0 events, skipped 1", "second import collides with the first")

	out, err = execute(t, "export", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY:Imported review")
}

func TestImportRequiresSource(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "import", "--config", cfgPath)
	assert.Error(t, err)
}

func TestBackupCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t)
	out, err := execute(t, "backup", "--config", cfgPath)
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(path, dataDir), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCaptureOptions(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	configPath = cfgPath
	a, err := setup(context.Background())
	require.NoError(t, err)
	defer a.Close()

	opts := a.captureOptions(time.Time{}, "x.png")
	assert.Equal(t, "http://127.0.0.1:8080", opts.BaseURL)
	assert.Equal(t, "x.png", opts.OutputPath)
	assert.Equal(t, 1280, opts.Width)
	assert.Empty(t, opts.Username)

	a.cfg.Listen = ":9090"
	a.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	opts = a.captureOptions(time.Time{}, "x.png")
	assert.Equal(t, "http://127.0.0.1:9090", opts.BaseURL)
	assert.Equal(t, "admin", opts.Username)
	assert.Equal(t, "secret", opts.Password)
}
