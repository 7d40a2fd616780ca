package audit

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"docdesk/pkg/requestcontext"
)

// Enrich copies request correlation data from ctx into the event. Fields that
// are already set are kept.
func Enrich(ctx context.Context, e Event) Event {
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ClientIP == "" {
		e.ClientIP = requestcontext.ClientIP(ctx)
	}
	if e.Device == "" {
		e.Device = DeviceLabel(requestcontext.UserAgent(ctx))
	}
	if e.Category == "" {
		e.Category = AuditEvent(e.Action).Category()
	}
	return e
}

// DeviceLabel renders a short human-readable device description such as
// "Firefox on Linux". Empty input yields an empty label.
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "bot"
		}
		return "bot: " + name
	}

	browser, _ := ua.Browser()
	os := ua.OS()
	var b strings.Builder
	if browser != "" {
		b.WriteString(browser)
	} else {
		b.WriteString("unknown client")
	}
	if os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	return b.String()
}
