//go:build windows

package autostart

import (
	"errors"

	"golang.org/x/sys/windows/registry"
)

func set(appName, cmd string, enabled bool) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, RunKey, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer key.Close()

	if enabled {
		return key.SetStringValue(appName, cmd)
	}
	if err := key.DeleteValue(appName); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}
