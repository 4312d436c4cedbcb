package observability

import (
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var sensitiveHeaders = []string{"Authorization", "X-Refresh-Token", "Cookie"}

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			scrubEvent(event)
			return event
		},
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// scrubEvent drops credentials from the captured request. Live connections
// carry the access token in the query string.
func scrubEvent(event *sentry.Event) {
	if event == nil || event.Request == nil {
		return
	}
	for name := range event.Request.Headers {
		for _, sensitive := range sensitiveHeaders {
			if strings.EqualFold(name, sensitive) {
				event.Request.Headers[name] = "[redacted]"
			}
		}
	}
	event.Request.Cookies = ""
	event.Request.QueryString = scrubQuery(event.Request.QueryString)
	if u, err := url.Parse(event.Request.URL); err == nil && u.RawQuery != "" {
		u.RawQuery = scrubQuery(u.RawQuery)
		event.Request.URL = u.String()
	}
}

func scrubQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	if values.Has("token") {
		values.Set("token", "[redacted]")
	}
	return values.Encode()
}
