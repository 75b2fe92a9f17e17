// Package browser opens URLs in the system default browser.
package browser

import "github.com/pkg/browser"

// openURL is swapped out in tests.
var openURL = browser.OpenURL

// Open launches the default browser at url. Failure is the caller's
// problem to report; serving never depends on it.
func Open(url string) error {
	return openURL(url)
}
