//go:build windows

package alert

import (
	"time"

	"github.com/go-toast/toast"
)

// longToast is the duration from which Windows is asked for a long toast.
const longToast = 7 * time.Second

func pushToast(t toastMessage) error {
	n := toast.Notification{
		AppID:    t.AppID,
		Title:    t.Title,
		Message:  t.Body,
		Icon:     t.Icon,
		Duration: toast.Short,
	}
	if t.Duration > longToast {
		n.Duration = toast.Long
	}
	if t.Activation != "" {
		n.ActivationType = "protocol"
		n.ActivationArguments = t.Activation
	}
	return n.Push()
}
