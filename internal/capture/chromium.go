package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// Default capture parameters for the month snapshot.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// BaseURL is the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Month selects the grid to render. Zero means the server's current month.
	Month time.Time

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Username and Password are sent as HTTP basic auth when both are set.
	Username string
	Password string

	// ExecPath overrides the Chromium binary chromedp looks up.
	ExecPath string

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration
}

// PrintURL returns the home page URL in print mode for month.
func PrintURL(base string, month time.Time) (string, error) {
	if base == "" {
		return "", errors.New("capture: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("capture: parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("capture: base URL %q needs scheme and host", base)
	}
	u.Path = "/"
	q := url.Values{}
	q.Set("print", "1")
	if !month.IsZero() {
		q.Set("month", month.Format(model.MonthLayout))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ListenURL turns a listen address such as ":8080" or "0.0.0.0:8080"
// into a loopback base URL the capture browser can reach.
func ListenURL(listen string) string {
	host, port := "127.0.0.1", ""
	for i := len(listen) - 1; i >= 0; i-- {
		if listen[i] == ':' {
			if h := listen[:i]; h != "" && h != "0.0.0.0" && h != "[::]" {
				host = h
			}
			port = listen[i+1:]
			break
		}
	}
	if port == "" {
		port = "80"
	}
	return "http://" + host + ":" + port
}

// CaptureMonthPNG launches a headless Chromium instance via chromedp,
// opens the home page in print mode, waits for `[data-ready="true"]` and
// writes a full-page PNG to opts.OutputPath.
func CaptureMonthPNG(parentCtx context.Context, opts Options) error {
	target, err := PrintURL(opts.BaseURL, opts.Month)
	if err != nil {
		return err
	}
	if opts.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{network.Enable()}
	if opts.Username != "" && opts.Password != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + cred}))
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if err := writeFileAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("month snapshot captured",
		"output", opts.OutputPath,
		"bytes", len(png),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// writeFileAtomic replaces path so /preview.png never serves a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
