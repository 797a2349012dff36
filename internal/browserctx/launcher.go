package browserctx

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ReleaseFunc tears down whatever infrastructure a launcher stood up behind
// a browser process, after the browser itself has been closed.
type ReleaseFunc func(ctx context.Context) error

// Launcher starts a browser process. The local launcher runs the installed
// Chrome executable; the pool launcher attaches to a containerized Chrome
// over CDP.
type Launcher interface {
	Launch(ctx context.Context) (playwright.Browser, ReleaseFunc, error)
}

// LocalLauncher starts Chrome on the operator's machine through the
// playwright driver.
type LocalLauncher struct {
	pw             *playwright.Playwright
	executablePath string
	headless       bool
}

// NewLocalLauncher builds a launcher for the given executable. An empty path
// falls back to the browser bundled with the driver.
func NewLocalLauncher(pw *playwright.Playwright, executablePath string, headless bool) *LocalLauncher {
	return &LocalLauncher{
		pw:             pw,
		executablePath: executablePath,
		headless:       headless,
	}
}

// Launch implements Launcher.
func (l *LocalLauncher) Launch(ctx context.Context) (playwright.Browser, ReleaseFunc, error) {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
	}
	if l.executablePath != "" {
		opts.ExecutablePath = playwright.String(l.executablePath)
	}

	browser, err := l.pw.Chromium.Launch(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	release := func(context.Context) error { return nil }
	return browser, release, nil
}
