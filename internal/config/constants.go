package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const ExpirySweepInterval = 5 * time.Minute

// Portal token issuance bounds
const (
	MaxTokenExpiryDays = 365
	MaxHolderNameRunes = 100
)

// Scoped ticket access bounds
const (
	PortalTicketPageSize      = 100
	MinTicketSubjectRunes     = 3
	MaxTicketSubjectRunes     = 200
	MaxTicketDescriptionRunes = 5000
)

// Failed validations sleep for a random duration in this range
const (
	InvalidTokenDelayMin    = 50 * time.Millisecond
	InvalidTokenDelayJitter = 100 * time.Millisecond
)

// LastUsedUpdateTimeout bounds the background last_used_at write.
const LastUsedUpdateTimeout = 5 * time.Second

// PortalLoginPath is the customer-facing page that consumes a bearer secret.
const PortalLoginPath = "/customer-portal/login"
