package loginflow

import (
	"net/url"
	"strings"
)

// Classification is the verdict on a navigated URL: either the requested
// resource is reachable or an interstitial blocks it.
type Classification int

const (
	// Authenticated means the URL is past every known challenge surface.
	Authenticated Classification = iota
	// Challenge means the URL is a login, checkpoint or authwall page.
	Challenge
)

// challengePaths are the URL path prefixes that indicate an authentication
// interstitial. The set is fixed; classification must be total and
// deterministic.
var challengePaths = []string{
	"/login",
	"/uas/login",
	"/checkpoint",
	"/authwall",
	"/challenge",
}

// Classify maps a URL to its challenge verdict. Unparseable URLs and bare
// origin roots classify as challenges: the site redirects logged-out
// visitors to its landing page, and an unreadable URL is never proof of an
// authenticated view.
func Classify(rawURL string) Classification {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Challenge
	}

	path := u.EscapedPath()
	if path == "" || path == "/" {
		return Challenge
	}

	for _, prefix := range challengePaths {
		if strings.HasPrefix(path, prefix) {
			return Challenge
		}
	}
	return Authenticated
}
