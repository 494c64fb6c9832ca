package alert

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// toastMessage is what reaches the OS notification backend.
type toastMessage struct {
	AppID      string
	Title      string
	Body       string
	Icon       string
	Activation string // URL opened when the toast is clicked
	Duration   time.Duration
}

// Desktop raises OS toast notifications. Where the platform supports
// activation, clicking a toast opens the click URL for its notification id.
type Desktop struct {
	appID     string
	clickBase string
	notify    func(t toastMessage) error
}

// NewDesktop creates a toast notifier. clickBase is the URL prefix of the
// click route, e.g. "http://127.0.0.1:8765/api/v1/notifications"; when
// empty, a click opens the item link directly.
func NewDesktop(appID, clickBase string) *Desktop {
	return &Desktop{
		appID:     appID,
		clickBase: strings.TrimRight(clickBase, "/"),
		notify:    pushToast,
	}
}

func (d *Desktop) Name() string { return "desktop" }

// ClickURL returns the URL that resolves notification id.
func (d *Desktop) ClickURL(id string) string {
	if d.clickBase == "" || id == "" {
		return ""
	}
	return d.clickBase + "/" + url.PathEscape(id) + "/click"
}

func (d *Desktop) Send(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.notify(d.message(n))
}

func (d *Desktop) message(n *Notification) toastMessage {
	activation := d.ClickURL(n.ID)
	if activation == "" {
		activation = n.Link
	}
	duration := n.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	return toastMessage{
		AppID:      d.appID,
		Title:      n.Title,
		Body:       n.Body,
		Icon:       n.Icon,
		Activation: activation,
		Duration:   duration,
	}
}
