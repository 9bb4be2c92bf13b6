package audit

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventTokenIssue      EventType = "portal_token_issue"
	EventTokenRevoke     EventType = "portal_token_revoke"
	EventTokenInvalid    EventType = "portal_token_invalid"
	EventTokenExpired    EventType = "portal_token_expired"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventTicketSubmit    EventType = "portal_ticket_submit"
	EventAuthFailure     EventType = "auth_failure"
	EventAuthzFailure    EventType = "authz_failure"
)

// Event is one security-relevant action. Secrets never go in Details;
// token digests only in masked form.
type Event struct {
	Type      EventType
	UserID    string
	ClientID  string
	TokenID   string
	IP        string
	UserAgent string
	RequestID string
	Details   map[string]any
}

func Log(event Event) {
	ctx := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now())

	for _, f := range []struct{ key, value string }{
		{"user_id", event.UserID},
		{"client_id", event.ClientID},
		{"token_id", event.TokenID},
		{"ip", event.IP},
		{"user_agent", event.UserAgent},
		{"request_id", event.RequestID},
	} {
		if f.value != "" {
			ctx = ctx.Str(f.key, f.value)
		}
	}
	logger := ctx.Logger()

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Time:
		return e.Time(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills the caller's address, user agent and request id from r.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	event.RequestID = middleware.GetReqID(r.Context())
	Log(event)
}

// ClientIP returns the host part of r.RemoteAddr. Forwarded headers are
// ignored here; the trusted proxy middleware resolves them into RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
