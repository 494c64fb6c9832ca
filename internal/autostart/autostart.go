// Package autostart registers the application to launch at user login.
package autostart

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned on platforms without a login entry backend.
var ErrUnsupported = errors.New("autostart not supported on this platform")

// RunKey is the registry key holding per-user login entries on Windows.
const RunKey = `Software\Microsoft\Windows\CurrentVersion\Run`

// Set adds or removes the login entry for appName pointing at exePath.
// Removing an entry that does not exist is not an error.
func Set(appName, exePath string, enabled bool) error {
	if strings.TrimSpace(appName) == "" {
		return errors.New("autostart: empty app name")
	}
	if enabled && exePath == "" {
		return errors.New("autostart: empty executable path")
	}
	if err := set(appName, command(exePath), enabled); err != nil {
		return fmt.Errorf("set autostart %s: %w", appName, err)
	}
	return nil
}

// command quotes exePath so paths with spaces survive the shell.
func command(exePath string) string {
	if exePath == "" || strings.HasPrefix(exePath, `"`) {
		return exePath
	}
	return `"` + exePath + `"`
}
