//go:build !windows

package alert

import "github.com/gen2brain/beeep"

// pushToast shows a plain toast. These backends report no clicks, so the
// notification is resolved through the HTTP click route instead.
func pushToast(t toastMessage) error {
	return beeep.Notify(t.Title, t.Body, t.Icon)
}
