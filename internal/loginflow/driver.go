// Package loginflow drives the authentication challenge of a profile page:
// it classifies the landed URL and, when a login interstitial blocks the
// target, enters credentials in a single bounded pass.
package loginflow

import (
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// State is one node of the login state machine.
type State string

const (
	StateUnauthenticated      State = "UNAUTHENTICATED"
	StateChallengeDetected    State = "CHALLENGE_DETECTED"
	StateCredentialsSubmitted State = "CREDENTIALS_SUBMITTED"
	StatePostSubmitWait       State = "POST_SUBMIT_WAIT"
	StateAuthenticated        State = "AUTHENTICATED"
	StateFailed               State = "FAILED"
)

// FailureReason explains a terminal Failed state.
type FailureReason string

const (
	FailureNone            FailureReason = ""
	FailureFormNotFound    FailureReason = "login-form-not-found"
	FailureInteraction     FailureReason = "form-interaction-failed"
	FailureStillChallenged FailureReason = "post-submit-still-challenged"
)

// Selectors identifies the credential-entry controls. The original site has
// shipped both field-id and role-based variants; which one applies is
// configuration, not a separate code path.
type Selectors struct {
	Identifier string
	Password   string
	Submit     string
}

// Config bounds every wait in the flow. The pre-submit delay is a fixed,
// non-adaptive pause: instant field-entry-to-submit patterns are a known
// bot-detector heuristic.
type Config struct {
	Selectors      Selectors
	FormTimeout    time.Duration
	PreSubmitDelay time.Duration
	SubmitSettle   time.Duration
	FinalSettle    time.Duration
}

// DefaultConfig matches the site's dedicated /login page.
func DefaultConfig() Config {
	return Config{
		Selectors: Selectors{
			Identifier: "#username",
			Password:   "#password",
			Submit:     `button[type="submit"]`,
		},
		FormTimeout:    10 * time.Second,
		PreSubmitDelay: 1 * time.Second,
		SubmitSettle:   3 * time.Second,
		FinalSettle:    2 * time.Second,
	}
}

// Page is the slice of the browser page the driver touches. playwright.Page
// satisfies it; tests substitute fakes.
type Page interface {
	URL() string
	WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error)
	Fill(selector string, value string, options ...playwright.PageFillOptions) error
	Click(selector string, options ...playwright.PageClickOptions) error
	WaitForTimeout(timeout float64)
}

// Result is the terminal outcome of one driver pass.
type Result struct {
	State    State
	Reason   FailureReason
	FinalURL string
	Err      error
}

// Authenticated reports whether the pass ended in the success state.
func (r Result) Authenticated() bool {
	return r.State == StateAuthenticated
}

// Driver runs the login state machine. One pass either authenticates or
// reports failure; re-attempting is the caller's decision.
type Driver struct {
	cfg    Config
	logger *zap.Logger
}

// NewDriver builds a driver with the given bounds and selectors.
func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger}
}

// Run classifies the current URL and, when challenged, drives credential
// entry to a terminal state. Credentials are never logged.
func (d *Driver) Run(page Page, identifier, password string) Result {
	current := page.URL()
	if Classify(current) == Authenticated {
		d.logger.Debug("no challenge detected", zap.String("url", current))
		return Result{State: StateAuthenticated, FinalURL: current}
	}

	d.logger.Info("login challenge detected", zap.String("url", current))

	if _, err := page.WaitForSelector(d.cfg.Selectors.Identifier, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(d.cfg.FormTimeout.Milliseconds())),
	}); err != nil {
		return Result{
			State:    StateFailed,
			Reason:   FailureFormNotFound,
			FinalURL: page.URL(),
			Err:      err,
		}
	}

	if err := page.Fill(d.cfg.Selectors.Identifier, identifier); err != nil {
		return Result{State: StateFailed, Reason: FailureInteraction, FinalURL: page.URL(), Err: err}
	}
	if err := page.Fill(d.cfg.Selectors.Password, password); err != nil {
		return Result{State: StateFailed, Reason: FailureInteraction, FinalURL: page.URL(), Err: err}
	}

	// Fixed pause between entry and submission.
	page.WaitForTimeout(float64(d.cfg.PreSubmitDelay.Milliseconds()))

	if err := page.Click(d.cfg.Selectors.Submit); err != nil {
		return Result{State: StateFailed, Reason: FailureInteraction, FinalURL: page.URL(), Err: err}
	}

	// CredentialsSubmitted -> PostSubmitWait: let the redirect settle, then
	// re-classify with the same pattern table. A URL that still matches a
	// challenge pattern covers unhandled 2FA and verification interstitials.
	page.WaitForTimeout(float64(d.cfg.SubmitSettle.Milliseconds()))
	page.WaitForTimeout(float64(d.cfg.FinalSettle.Milliseconds()))

	final := page.URL()
	if Classify(final) == Challenge {
		d.logger.Warn("still challenged after submit", zap.String("url", final))
		return Result{State: StateFailed, Reason: FailureStillChallenged, FinalURL: final}
	}

	d.logger.Info("login completed", zap.String("url", final))
	return Result{State: StateAuthenticated, FinalURL: final}
}
