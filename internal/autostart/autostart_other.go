//go:build !windows

package autostart

func set(appName, cmd string, enabled bool) error {
	return ErrUnsupported
}
