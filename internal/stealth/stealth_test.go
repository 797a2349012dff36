package stealth

import (
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRecorder captures the init script a page receives.
type scriptRecorder struct {
	playwright.Page
	content string
	err     error
}

func (p *scriptRecorder) AddInitScript(script playwright.Script) error {
	if p.err != nil {
		return p.err
	}
	if script.Content != nil {
		p.content = *script.Content
	}
	return nil
}

func TestApplyInjectsHardeningScript(t *testing.T) {
	page := &scriptRecorder{}

	require.NoError(t, Apply(page))

	assert.Contains(t, page.content, "navigator, 'webdriver'")
	assert.Contains(t, page.content, "RTCPeerConnection")
	assert.Contains(t, page.content, "mediaDevices")
}

func TestApplyKeepsPermissionsQueryBound(t *testing.T) {
	page := &scriptRecorder{}

	require.NoError(t, Apply(page))

	// An unbound query throws Illegal invocation on every passthrough call.
	assert.Contains(t, page.content, "permissions.query.bind(permissions)")
}

func TestApplyPropagatesInjectionFailure(t *testing.T) {
	page := &scriptRecorder{err: errors.New("page closed")}

	assert.Error(t, Apply(page))
}
