package config

import (
	"time"

	"github.com/peerhive/peerhive/internal/logger"
)

const (
	// DefaultInviteTokenLength is the default length of invitation tokens.
	// 48 characters over a 64-symbol alphabet carry 288 bits of entropy.
	DefaultInviteTokenLength = 48

	// DefaultInviteExpiryHours is the default invitation token lifetime.
	DefaultInviteExpiryHours = 24
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Mail      Mail
	Auth      Auth
	Invite    Invite
	Uploads   Uploads
	Title     string
	Webserver Webserver
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic   bool    // enable static file browsing (for development purposes only)
	CleanPath      bool    // use clean path middleware to allow multi slash requests
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// Invite holds invitation token issuance settings.
type Invite struct {
	TokenLength int // length of the random token string
	ExpiryHours int // token lifetime in hours, fixed at issuance
}

// Uploads holds file upload storage settings.
type Uploads struct {
	Path string // directory for post attachments and group images
}

// Mail holds outbound SMTP settings for notification delivery.
type Mail struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// OIDC holds OpenID Connect login settings.
type OIDC struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Auth holds authentication settings.
type Auth struct {
	OIDC OIDC
}
