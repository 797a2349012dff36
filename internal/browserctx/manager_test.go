package browserctx

import (
	"context"
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/internal/loginflow"
	"github.com/zappedin/orchestrator/internal/statestore"
	"github.com/zappedin/orchestrator/pkg/models"
)

// failingLauncher counts launch attempts and always fails.
type failingLauncher struct {
	calls int
}

func (l *failingLauncher) Launch(ctx context.Context) (playwright.Browser, ReleaseFunc, error) {
	l.calls++
	return nil, nil, errors.New("no browser available")
}

func newTestManager(t *testing.T, launcher Launcher) *Manager {
	t.Helper()
	store, err := statestore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	login := loginflow.NewDriver(loginflow.DefaultConfig(), zap.NewNop())
	return NewManager(launcher, store, login, DefaultConfig(), zap.NewNop())
}

func validAccount() *models.Account {
	return &models.Account{
		Username: "alice",
		Password: "hunter2",
		Proxy:    models.Proxy{Host: "proxy.example.com", Port: 8080},
	}
}

func TestInitRejectsInvalidRecordBeforeLaunching(t *testing.T) {
	launcher := &failingLauncher{}
	m := newTestManager(t, launcher)

	err := m.Init(context.Background(), &models.Account{Username: ""})
	assert.Error(t, err)

	err = m.Init(context.Background(), &models.Account{
		Username: "alice",
		Proxy:    models.Proxy{Host: "p", Port: 0},
	})
	assert.Error(t, err)

	err = m.Init(context.Background(), nil)
	assert.Error(t, err)

	assert.Zero(t, launcher.calls, "no browser resource allocated for invalid input")
}

func TestInitLaunchFailureLeavesNoHandles(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})

	err := m.Init(context.Background(), validAccount())

	require.Error(t, err)
	assert.Nil(t, m.GetPage())
	_, err = m.GetState()
	assert.Error(t, err)
}

func TestGetPageWithoutContextIsNil(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})
	assert.Nil(t, m.GetPage())
}

func TestStateOperationsWithoutContextError(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})

	_, err := m.GetState()
	assert.Error(t, err)

	assert.Error(t, m.SaveState())

	_, err = m.Screenshot()
	assert.Error(t, err)
}

func TestRotateProxyWithoutInit(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})

	err := m.RotateProxy(context.Background(), models.Proxy{Host: "p", Port: 1})
	assert.Error(t, err)
}

func TestRotateProxyRejectsInvalidDescriptor(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})

	err := m.RotateProxy(context.Background(), models.Proxy{Host: "", Port: 80})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestManager(t, &failingLauncher{})

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))
}

func TestStorageStateRoundTrip(t *testing.T) {
	state := &models.SessionState{
		Cookies: []models.Cookie{
			{
				Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/",
				Expires: 1924905600, HTTPOnly: true, Secure: true, SameSite: "Lax",
			},
		},
		Origins: []models.Origin{
			{
				Origin: "https://www.linkedin.com",
				LocalStorage: []models.LocalStorageEntry{
					{Name: "voyager", Value: "1"},
				},
			},
		},
	}

	optional := toStorageState(state)
	require.Len(t, optional.Cookies, 1)
	assert.Equal(t, "li_at", optional.Cookies[0].Name)
	assert.Equal(t, playwright.SameSiteAttributeLax, optional.Cookies[0].SameSite)

	snapshot := &playwright.StorageState{
		Cookies: []playwright.Cookie{
			{
				Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/",
				Expires: 1924905600, HttpOnly: true, Secure: true,
				SameSite: playwright.SameSiteAttributeLax,
			},
		},
		Origins: []playwright.Origin{
			{
				Origin:       "https://www.linkedin.com",
				LocalStorage: []playwright.NameValue{{Name: "voyager", Value: "1"}},
			},
		},
	}

	back := fromStorageState(snapshot)
	assert.Equal(t, state.Cookies, back.Cookies)
	assert.Equal(t, state.Origins, back.Origins)
}

// fakeBrowser drives the manager through a full lifecycle without a real
// browser process. Interface methods the manager never touches come from the
// embedded interface and panic if reached.
type fakeBrowser struct {
	playwright.Browser
	contexts       int
	newContextOpts []playwright.BrowserNewContextOptions
	onNewContext   func()
	snapshot       *playwright.StorageState
}

func (b *fakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	b.contexts++
	if len(options) > 0 {
		b.newContextOpts = append(b.newContextOpts, options[0])
	}
	if b.onNewContext != nil {
		b.onNewContext()
	}
	return &fakeContext{browser: b}, nil
}

func (b *fakeBrowser) IsConnected() bool { return true }

func (b *fakeBrowser) Close(options ...playwright.BrowserCloseOptions) error { return nil }

type fakeContext struct {
	playwright.BrowserContext
	browser *fakeBrowser
}

func (c *fakeContext) NewPage() (playwright.Page, error) { return &fakeNavPage{}, nil }

func (c *fakeContext) StorageState(path ...string) (*playwright.StorageState, error) {
	return c.browser.snapshot, nil
}

func (c *fakeContext) Close(options ...playwright.BrowserContextCloseOptions) error { return nil }

// fakeNavPage lands every navigation on its target, so the login flow sees
// an authenticated URL and skips the form.
type fakeNavPage struct {
	playwright.Page
	url string
}

func (p *fakeNavPage) AddInitScript(script playwright.Script) error { return nil }

func (p *fakeNavPage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.url = url
	return nil, nil
}

func (p *fakeNavPage) URL() string { return p.url }

func (p *fakeNavPage) WaitForTimeout(timeout float64) {}

func (p *fakeNavPage) Close(options ...playwright.PageCloseOptions) error { return nil }

type fakeBrowserLauncher struct {
	browser *fakeBrowser
	calls   int
}

func (l *fakeBrowserLauncher) Launch(ctx context.Context) (playwright.Browser, ReleaseFunc, error) {
	l.calls++
	return l.browser, func(context.Context) error { return nil }, nil
}

func TestRotateProxyPersistsStateBeforeOpeningNewContext(t *testing.T) {
	store, err := statestore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	browser := &fakeBrowser{
		snapshot: &playwright.StorageState{
			Cookies: []playwright.Cookie{
				{Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/"},
			},
		},
	}
	launcher := &fakeBrowserLauncher{browser: browser}
	login := loginflow.NewDriver(loginflow.DefaultConfig(), zap.NewNop())
	m := NewManager(launcher, store, login, DefaultConfig(), zap.NewNop())

	require.NoError(t, m.Init(context.Background(), validAccount()))
	require.Equal(t, 1, browser.contexts)
	require.NotNil(t, m.GetPage())

	var persistedBeforeOpen bool
	browser.onNewContext = func() {
		state := store.Load("alice")
		persistedBeforeOpen = len(state.Cookies) == 1 && state.Cookies[0].Name == "li_at"
	}

	fresh := models.Proxy{Host: "fresh.example.com", Port: 9090}
	require.NoError(t, m.RotateProxy(context.Background(), fresh))

	assert.True(t, persistedBeforeOpen, "prior state persisted before the new context opened")
	assert.Equal(t, 1, launcher.calls, "browser process survives the rotation")
	assert.Equal(t, 2, browser.contexts)

	require.Len(t, browser.newContextOpts, 2)
	require.NotNil(t, browser.newContextOpts[1].Proxy)
	assert.Equal(t, fresh.ServerURL(), browser.newContextOpts[1].Proxy.Server)
}

func TestCloseWithLiveContextPersistsState(t *testing.T) {
	store, err := statestore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	browser := &fakeBrowser{
		snapshot: &playwright.StorageState{
			Cookies: []playwright.Cookie{
				{Name: "li_at", Value: "tok", Domain: ".linkedin.com", Path: "/"},
			},
		},
	}
	login := loginflow.NewDriver(loginflow.DefaultConfig(), zap.NewNop())
	m := NewManager(&fakeBrowserLauncher{browser: browser}, store, login, DefaultConfig(), zap.NewNop())

	require.NoError(t, m.Init(context.Background(), validAccount()))
	require.NoError(t, m.Close(context.Background()))

	state := store.Load("alice")
	require.Len(t, state.Cookies, 1)
	assert.Equal(t, "li_at", state.Cookies[0].Name)
	assert.Nil(t, m.GetPage())
}

func TestToStorageStateNilYieldsEmpty(t *testing.T) {
	optional := toStorageState(nil)
	assert.Empty(t, optional.Cookies)
	assert.Empty(t, optional.Origins)

	back := fromStorageState(nil)
	assert.True(t, back.IsEmpty())
}
