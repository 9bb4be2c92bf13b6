package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/automsp/portal-server-go/internal/httputil"
)

const corsMaxAgeSeconds = 86400

// CORSMiddleware admits the origins accepted by the policy. Other origins get
// no Access-Control-Allow-Origin header.
type CORSMiddleware struct {
	handler func(http.Handler) http.Handler
}

func NewCORSMiddleware(policy *httputil.OriginPolicy) *CORSMiddleware {
	return &CORSMiddleware{
		handler: cors.Handler(cors.Options{
			AllowOriginFunc: func(_ *http.Request, origin string) bool {
				return policy.IsAllowed(origin)
			},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         corsMaxAgeSeconds,
		}),
	}
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return m.handler(next)
}
