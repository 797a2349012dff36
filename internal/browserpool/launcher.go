package browserpool

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/zappedin/orchestrator/internal/browserctx"
)

// Launcher adapts the container pool to the context manager's launcher
// contract: each Launch starts one container and attaches to it over CDP;
// the returned release stops the container after the browser is closed.
type Launcher struct {
	pool       *Pool
	pw         *playwright.Playwright
	accountKey string
}

// NewLauncher builds a pool-backed launcher for one account.
func NewLauncher(pool *Pool, pw *playwright.Playwright, accountKey string) *Launcher {
	return &Launcher{pool: pool, pw: pw, accountKey: accountKey}
}

// Launch implements browserctx.Launcher.
func (l *Launcher) Launch(ctx context.Context) (playwright.Browser, browserctx.ReleaseFunc, error) {
	instance, err := l.pool.Start(ctx, l.accountKey)
	if err != nil {
		return nil, nil, err
	}

	browser, err := l.pw.Chromium.ConnectOverCDP(instance.ConnectURL)
	if err != nil {
		l.pool.Stop(ctx, instance.ContainerID)
		return nil, nil, fmt.Errorf("failed to attach to pooled browser: %w", err)
	}

	release := func(releaseCtx context.Context) error {
		return l.pool.Stop(releaseCtx, instance.ContainerID)
	}
	return browser, release, nil
}
