// Package browserctx owns the browser process, browsing context and page of
// one activated account. A manager holds at most one of each; the context
// and page always appear and disappear together, and the browser never
// outlives the manager.
package browserctx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/internal/loginflow"
	"github.com/zappedin/orchestrator/internal/statestore"
	"github.com/zappedin/orchestrator/internal/stealth"
	"github.com/zappedin/orchestrator/pkg/models"
)

// Config bounds the manager's browser-facing waits.
type Config struct {
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	// PostNavSettle is the fixed pause after a navigation reaches network
	// quiescence, before the URL is classified.
	PostNavSettle  time.Duration
	DiagnosticsDir string
}

// DefaultConfig matches the viewport and timing the profile site is served
// with.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:     1280,
		ViewportHeight:    700,
		NavigationTimeout: 60 * time.Second,
		PostNavSettle:     2 * time.Second,
	}
}

// Manager coordinates the lifecycle of one account's browsing session.
//
// Two locks with distinct roles: opMu serializes every browser-facing
// operation (init, rotation, state capture, close) so a rotation can never
// race a login pass; handleMu guards the bare handle pointers so GetPage
// stays non-blocking even while an operation is in flight.
type Manager struct {
	launcher Launcher
	store    *statestore.Store
	login    *loginflow.Driver
	cfg      Config
	logger   *zap.Logger

	opMu     sync.Mutex
	handleMu sync.RWMutex

	account *models.Account
	proxy   models.Proxy
	browser playwright.Browser
	release ReleaseFunc
	browserContext playwright.BrowserContext
	page           playwright.Page
	closed         bool
}

// NewManager wires a manager to its launcher, state store and login driver.
func NewManager(launcher Launcher, store *statestore.Store, login *loginflow.Driver, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		launcher: launcher,
		store:    store,
		login:    login,
		cfg:      cfg,
		logger:   logger,
	}
}

// Init provisions the full session for an account: browser process,
// proxy-bound context seeded with the persisted state, hardened page,
// navigation and login. On any failure every partially-acquired resource is
// released before the error is returned.
func (m *Manager) Init(ctx context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account record: %w", err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.browser != nil || m.browserContext != nil {
		return fmt.Errorf("manager already holds a browser for %s", m.accountName())
	}

	m.account = account
	m.proxy = account.Proxy
	m.closed = false

	// An unparseable state string is "no state", not a fatal error.
	state := models.ParseSessionState(account.State)
	if state.IsEmpty() {
		state = m.store.Load(account.Username)
	}

	browser, release, err := m.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	m.setBrowser(browser, release)

	if err := m.openContext(state, account.Proxy); err != nil {
		m.cleanup(ctx)
		return err
	}

	if err := m.createPage(); err != nil {
		m.cleanup(ctx)
		return err
	}

	if err := m.navigateAndLogin(); err != nil {
		m.cleanup(ctx)
		return err
	}

	m.logger.Info("browsing session initialized",
		zap.String("username", account.Username),
		zap.String("proxy", account.Proxy.ServerURL()))
	return nil
}

// RotateProxy swaps the upstream proxy: the current context's state is
// captured and persisted, the context is closed while the browser process
// survives, and a fresh context is opened against the new descriptor. A
// failed capture is reported but does not abort the rotation.
func (m *Manager) RotateProxy(ctx context.Context, proxy models.Proxy) error {
	if err := proxy.Validate(); err != nil {
		return fmt.Errorf("invalid proxy descriptor: %w", err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed || m.account == nil {
		return fmt.Errorf("manager is not active")
	}

	prior := models.EmptySessionState()
	if m.browserContext != nil {
		snapshot, err := m.browserContext.StorageState()
		if err != nil {
			m.logger.Warn("state capture failed during rotation, proceeding with empty state",
				zap.String("username", m.accountName()), zap.Error(err))
		} else {
			prior = fromStorageState(snapshot)
			if err := m.store.Persist(m.accountName(), prior); err != nil {
				m.logger.Warn("failed to persist state during rotation",
					zap.String("username", m.accountName()), zap.Error(err))
			}
		}

		m.closeContext()
	}

	// The browser process is reused across rotations; relaunch only when a
	// previous failure took it down.
	if m.browser == nil || !m.browser.IsConnected() {
		browser, release, err := m.launcher.Launch(ctx)
		if err != nil {
			return fmt.Errorf("failed to relaunch browser: %w", err)
		}
		m.setBrowser(browser, release)
	}

	if err := m.openContext(prior, proxy); err != nil {
		return err
	}
	m.proxy = proxy

	if err := m.createPage(); err != nil {
		m.closeContext()
		return err
	}

	if err := m.navigateAndLogin(); err != nil {
		m.closeContext()
		return err
	}

	m.logger.Info("proxy rotated",
		zap.String("username", m.accountName()),
		zap.String("proxy", proxy.ServerURL()))
	return nil
}

// GetPage returns the current page handle, or nil when no context is active.
// It never blocks on an in-flight operation.
func (m *Manager) GetPage() playwright.Page {
	m.handleMu.RLock()
	defer m.handleMu.RUnlock()
	return m.page
}

// GetState snapshots the current context's session state.
func (m *Manager) GetState() (*models.SessionState, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.browserContext == nil {
		return nil, fmt.Errorf("no active browsing context")
	}
	snapshot, err := m.browserContext.StorageState()
	if err != nil {
		return nil, fmt.Errorf("failed to capture session state: %w", err)
	}
	return fromStorageState(snapshot), nil
}

// SaveState persists the current context's session state. Idempotent.
func (m *Manager) SaveState() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.saveState()
}

// Screenshot captures the current page as PNG bytes.
func (m *Manager) Screenshot() ([]byte, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.page == nil {
		return nil, fmt.Errorf("no active page")
	}
	data, err := m.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

// Close persists state best-effort, then releases context, browser and any
// launcher infrastructure. Safe to call repeatedly; every call after the
// first successful one is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return nil
	}

	// A save failure must not block the rest of close.
	if err := m.saveState(); err != nil {
		m.logger.Warn("failed to save state on close",
			zap.String("username", m.accountName()), zap.Error(err))
	}

	m.cleanup(ctx)
	m.closed = true

	m.logger.Info("browsing session closed", zap.String("username", m.accountName()))
	return nil
}

// openContext builds the proxy-bound context, seeding it with the given
// session state. The proxy's timezone and locale travel with it so the
// browsing fingerprint matches the exit node.
func (m *Manager) openContext(state *models.SessionState, proxy models.Proxy) error {
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.cfg.ViewportWidth,
			Height: m.cfg.ViewportHeight,
		},
		Proxy:        &playwright.Proxy{Server: proxy.ServerURL()},
		StorageState: toStorageState(state),
	}
	if proxy.Username != "" {
		opts.Proxy.Username = playwright.String(proxy.Username)
		opts.Proxy.Password = playwright.String(proxy.Password)
	}
	if proxy.Timezone != "" {
		opts.TimezoneId = playwright.String(proxy.Timezone)
	}
	if proxy.Locale != "" {
		opts.Locale = playwright.String(proxy.Locale)
	}

	browserContext, err := m.browser.NewContext(opts)
	if err != nil {
		return fmt.Errorf("failed to create browsing context: %w", err)
	}

	m.handleMu.Lock()
	m.browserContext = browserContext
	m.handleMu.Unlock()
	return nil
}

// createPage opens the page and injects the fingerprint hardening before any
// navigation. The ordering is load-bearing: hardening must be in place
// before the target site's scripts execute.
func (m *Manager) createPage() error {
	page, err := m.browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if err := stealth.Apply(page); err != nil {
		page.Close()
		return err
	}

	m.handleMu.Lock()
	m.page = page
	m.handleMu.Unlock()
	return nil
}

// navigateAndLogin visits the account's profile URL and drives the login
// flow when an interstitial blocks it. After a successful login the profile
// URL is revisited so the page lands on the originally requested resource.
func (m *Manager) navigateAndLogin() error {
	target := m.account.ProfileURL()

	if err := m.goTo(target); err != nil {
		return err
	}
	m.page.WaitForTimeout(float64(m.cfg.PostNavSettle.Milliseconds()))

	result := m.login.Run(m.page, m.account.LoginEmail(), m.account.Password)
	if !result.Authenticated() {
		m.captureDiagnostics(string(result.Reason))
		if result.Err != nil {
			return fmt.Errorf("login failed (%s): %w", result.Reason, result.Err)
		}
		return fmt.Errorf("login failed (%s) at %s", result.Reason, result.FinalURL)
	}

	// Replace any login-page remnants in the address bar with the intended
	// resource.
	if m.page.URL() != target {
		if err := m.goTo(target); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) goTo(url string) error {
	_, err := m.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(m.cfg.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (m *Manager) saveState() error {
	if m.browserContext == nil {
		return fmt.Errorf("no active browsing context")
	}
	snapshot, err := m.browserContext.StorageState()
	if err != nil {
		return fmt.Errorf("failed to capture session state: %w", err)
	}
	return m.store.Persist(m.accountName(), fromStorageState(snapshot))
}

// captureDiagnostics writes a failure screenshot. Best-effort: a diagnostics
// failure never changes the outcome it annotates.
func (m *Manager) captureDiagnostics(reason string) {
	if m.cfg.DiagnosticsDir == "" || m.page == nil {
		return
	}
	if err := os.MkdirAll(m.cfg.DiagnosticsDir, 0o755); err != nil {
		m.logger.Debug("diagnostics directory unavailable", zap.Error(err))
		return
	}

	name := fmt.Sprintf("%s-%s-%d.png", m.accountName(), reason, time.Now().Unix())
	path := filepath.Join(m.cfg.DiagnosticsDir, name)
	if _, err := m.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		m.logger.Debug("failed to capture diagnostics screenshot", zap.Error(err))
		return
	}
	m.logger.Info("diagnostics screenshot captured", zap.String("path", path))
}

func (m *Manager) setBrowser(browser playwright.Browser, release ReleaseFunc) {
	m.handleMu.Lock()
	m.browser = browser
	m.release = release
	m.handleMu.Unlock()
}

// closeContext tears down the context/page pair, leaving the browser alive.
func (m *Manager) closeContext() {
	m.handleMu.Lock()
	page, browserContext := m.page, m.browserContext
	m.page = nil
	m.browserContext = nil
	m.handleMu.Unlock()

	if page != nil {
		page.Close()
	}
	if browserContext != nil {
		if err := browserContext.Close(); err != nil {
			m.logger.Warn("failed to close browsing context",
				zap.String("username", m.accountName()), zap.Error(err))
		}
	}
}

// cleanup releases every owned resource, ignoring individual failures so one
// stuck handle cannot leak the rest.
func (m *Manager) cleanup(ctx context.Context) {
	m.closeContext()

	m.handleMu.Lock()
	browser, release := m.browser, m.release
	m.browser = nil
	m.release = nil
	m.handleMu.Unlock()

	if browser != nil {
		if err := browser.Close(); err != nil {
			m.logger.Warn("failed to close browser",
				zap.String("username", m.accountName()), zap.Error(err))
		}
	}
	if release != nil {
		if err := release(ctx); err != nil {
			m.logger.Warn("failed to release browser infrastructure",
				zap.String("username", m.accountName()), zap.Error(err))
		}
	}
}

func (m *Manager) accountName() string {
	if m.account == nil {
		return ""
	}
	return m.account.Username
}
