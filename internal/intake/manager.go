// Package intake is the orchestrator's entry point for account activations
// delivered over the deep-link channel. It enforces the one-live-browser-
// per-account invariant and turns every outcome into a notification; no
// failure here is fatal to the host process.
package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/zappedin/orchestrator/internal/accounts"
	"github.com/zappedin/orchestrator/internal/browserctx"
	"github.com/zappedin/orchestrator/internal/loginflow"
	"github.com/zappedin/orchestrator/internal/notify"
	"github.com/zappedin/orchestrator/internal/statestore"
	"github.com/zappedin/orchestrator/pkg/models"
)

// LauncherFactory produces the browser launcher for one account.
type LauncherFactory func(accountKey string) browserctx.Launcher

// ErrAlreadyActive reports that an account already holds a live session.
var ErrAlreadyActive = fmt.Errorf("account already active")

type entry struct {
	activation models.Activation
	manager    *browserctx.Manager
	// released marks the concurrency slot as returned. A failing provision
	// and a concurrent Deactivate both reach the release path; the slot has
	// exactly one owner.
	released bool
}

// Manager tracks all live activations.
type Manager struct {
	lookup    *accounts.Client
	store     *statestore.Store
	launchers LauncherFactory
	notifier  notify.Notifier
	logger    *zap.Logger
	loginCfg  loginflow.Config
	ctxCfg    browserctx.Config

	slots *semaphore.Weighted
	mu    sync.Mutex
	live  map[string]*entry
}

// NewManager wires the intake to its collaborators. maxConcurrent caps how
// many accounts may hold a browser at once.
func NewManager(
	lookup *accounts.Client,
	store *statestore.Store,
	launchers LauncherFactory,
	notifier notify.Notifier,
	loginCfg loginflow.Config,
	ctxCfg browserctx.Config,
	maxConcurrent int,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		lookup:    lookup,
		store:     store,
		launchers: launchers,
		notifier:  notifier,
		logger:    logger,
		loginCfg:  loginCfg,
		ctxCfg:    ctxCfg,
		slots:     semaphore.NewWeighted(int64(maxConcurrent)),
		live:      make(map[string]*entry),
	}
}

// ActivateByID resolves the account record remotely, then activates it. A
// failed lookup aborts before any browser resource is allocated.
func (m *Manager) ActivateByID(ctx context.Context, accountID string) (*models.Activation, error) {
	account, err := m.lookup.GetByID(ctx, accountID)
	if err != nil {
		m.notifier.Notify("ZappedIn", fmt.Sprintf("Account lookup failed: %v", err))
		return nil, err
	}
	return m.Activate(ctx, account)
}

// Activate registers a browsing session for one account and provisions it
// in the background; the returned activation is in the ACTIVATING state and
// the outcome arrives as a notification. A second activation for an
// already-active account returns the existing activation with
// ErrAlreadyActive instead of spawning a second browser.
func (m *Manager) Activate(ctx context.Context, account *models.Account) (*models.Activation, error) {
	if account == nil {
		return nil, fmt.Errorf("account record is required")
	}
	if err := account.Validate(); err != nil {
		m.notifier.Notify("ZappedIn", fmt.Sprintf("Invalid activation request: %v", err))
		return nil, err
	}

	if !m.slots.TryAcquire(1) {
		m.notifier.Notify("ZappedIn", "Activation refused: concurrency limit reached")
		return nil, fmt.Errorf("concurrency limit reached")
	}

	login := loginflow.NewDriver(m.loginCfg, m.logger.Named("loginflow"))
	mgr := browserctx.NewManager(
		m.launchers(account.Username),
		m.store,
		login,
		m.ctxCfg,
		m.logger.Named("browserctx"),
	)

	// Register before the (multi-second) provision so a concurrent second
	// activation for the same account sees it as live.
	e := &entry{
		activation: models.Activation{
			ID:        uuid.New().String(),
			Username:  account.Username,
			Status:    models.StatusActivating,
			StartedAt: time.Now(),
		},
		manager: mgr,
	}

	m.mu.Lock()
	if existing, ok := m.live[account.Username]; ok {
		m.mu.Unlock()
		m.slots.Release(1)
		m.logger.Info("activation ignored, account already active",
			zap.String("username", account.Username))
		existingCopy := existing.activation
		return &existingCopy, ErrAlreadyActive
	}
	m.live[account.Username] = e
	m.mu.Unlock()

	m.notifier.Notify("ZappedIn", fmt.Sprintf("Processing account: %s", account.Username))

	activation := e.activation

	// The deep-link caller is a fire-and-forget shim; the browser launch and
	// login run detached from its request.
	go m.provision(e, account)

	return &activation, nil
}

// provision runs the browser-facing half of an activation.
func (m *Manager) provision(e *entry, account *models.Account) {
	if err := e.manager.Init(context.Background(), account); err != nil {
		m.unregister(account.Username)
		m.releaseSlot(e)
		m.logger.Error("activation failed",
			zap.String("username", account.Username), zap.Error(err))
		m.notifier.Notify("ZappedIn Error",
			fmt.Sprintf("Failed to activate %s: %v", account.Username, err))
		return
	}

	m.mu.Lock()
	e.activation.Status = models.StatusActive
	m.mu.Unlock()

	m.notifier.Notify("ZappedIn", fmt.Sprintf("Account active: %s", account.Username))
}

// Deactivate closes an account's session and frees its slot.
func (m *Manager) Deactivate(ctx context.Context, username string) error {
	e, err := m.get(username)
	if err != nil {
		return err
	}

	if err := e.manager.Close(ctx); err != nil {
		m.logger.Warn("close reported error",
			zap.String("username", username), zap.Error(err))
	}

	m.unregister(username)
	m.releaseSlot(e)
	m.notifier.Notify("ZappedIn", fmt.Sprintf("Account closed: %s", username))
	return nil
}

// RotateProxy swaps the proxy of a live session.
func (m *Manager) RotateProxy(ctx context.Context, username string, proxy models.Proxy) error {
	e, err := m.get(username)
	if err != nil {
		return err
	}

	if err := e.manager.RotateProxy(ctx, proxy); err != nil {
		m.notifier.Notify("ZappedIn Error",
			fmt.Sprintf("Proxy rotation failed for %s: %v", username, err))
		return err
	}

	m.notifier.Notify("ZappedIn",
		fmt.Sprintf("Proxy rotated for %s to %s", username, proxy.ServerURL()))
	return nil
}

// Get returns the activation record for one account.
func (m *Manager) Get(username string) (*models.Activation, error) {
	e, err := m.get(username)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	activation := e.activation
	m.mu.Unlock()
	return &activation, nil
}

// List returns every live activation.
func (m *Manager) List() []*models.Activation {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*models.Activation, 0, len(m.live))
	for _, e := range m.live {
		activation := e.activation
		result = append(result, &activation)
	}
	return result
}

// State snapshots a live session's cookie/origin state.
func (m *Manager) State(username string) (*models.SessionState, error) {
	e, err := m.get(username)
	if err != nil {
		return nil, err
	}
	return e.manager.GetState()
}

// SaveState checkpoints a live session's state to durable storage.
func (m *Manager) SaveState(username string) error {
	e, err := m.get(username)
	if err != nil {
		return err
	}
	return e.manager.SaveState()
}

// Screenshot captures the live page of one account.
func (m *Manager) Screenshot(username string) ([]byte, error) {
	e, err := m.get(username)
	if err != nil {
		return nil, err
	}
	return e.manager.Screenshot()
}

// CloseAll tears down every live session, for graceful shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	usernames := make([]string, 0, len(m.live))
	for username := range m.live {
		usernames = append(usernames, username)
	}
	m.mu.Unlock()

	for _, username := range usernames {
		if err := m.Deactivate(ctx, username); err != nil {
			m.logger.Warn("failed to deactivate during shutdown",
				zap.String("username", username), zap.Error(err))
		}
	}
}

func (m *Manager) get(username string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live[username]
	if !ok {
		return nil, fmt.Errorf("no active session for %s", username)
	}
	return e, nil
}

func (m *Manager) unregister(username string) {
	m.mu.Lock()
	delete(m.live, username)
	m.mu.Unlock()
}

// releaseSlot returns an entry's concurrency slot exactly once, no matter
// how many teardown paths reach it.
func (m *Manager) releaseSlot(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	m.slots.Release(1)
}
