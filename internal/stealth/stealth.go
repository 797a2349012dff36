// Package stealth suppresses the high-entropy device APIs that automated
// browsers otherwise leak to fingerprinting scripts.
package stealth

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Apply registers the hardening script on a page. It must run before the
// first navigation: init scripts only cover documents created afterwards, so
// a late call leaves the target site's probes unmitigated.
func Apply(page playwright.Page) error {
	err := page.AddInitScript(playwright.Script{
		Content: playwright.String(hardeningScript),
	})
	if err != nil {
		return fmt.Errorf("failed to inject hardening script: %w", err)
	}
	return nil
}

// hardeningScript patches the detection vectors the profile site is known to
// probe. Each patch is isolated so one unsupported API cannot break the rest.
const hardeningScript = `
(() => {
    'use strict';

    if (window.__hardened) {
        return;
    }
    window.__hardened = true;

    // Media devices leak camera/microphone topology.
    try {
        Object.defineProperty(navigator, 'mediaDevices', {
            value: {
                getUserMedia: () => Promise.reject(new Error('Blocked for privacy')),
                enumerateDevices: () => Promise.resolve([]),
            },
        });
    } catch (e) {}

    // WebRTC exposes the real IP address behind the proxy.
    try {
        const blocked = function () {
            throw new Error('WebRTC blocked for privacy');
        };
        window.RTCPeerConnection = blocked;
        window.webkitRTCPeerConnection = blocked;
        window.RTCDataChannel = blocked;
    } catch (e) {}

    // navigator.webdriver is the first thing every bot detector reads.
    try {
        Object.defineProperty(navigator, 'webdriver', {
            get: () => undefined,
            configurable: true,
        });
    } catch (e) {}

    // Headless Chrome ships an empty plugin list.
    try {
        Object.defineProperty(navigator, 'plugins', {
            get: () => [
                { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
                { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
                { name: 'Native Client', filename: 'internal-nacl-plugin' },
            ],
        });
    } catch (e) {}

    // Permission queries behave differently under automation. The original
    // query must stay bound to its receiver or every passthrough call throws
    // an Illegal invocation, which is its own tell.
    try {
        const permissions = window.navigator.permissions;
        const originalQuery = permissions.query.bind(permissions);
        permissions.query = (parameters) => {
            if (parameters && parameters.name === 'notifications') {
                return Promise.resolve({ state: Notification.permission });
            }
            return originalQuery(parameters);
        };
    } catch (e) {}
})();
`
