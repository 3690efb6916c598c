// Package agrimandi wires the AgriMandi client together: one credential
// store, one API client, one session store and the feature stores that
// hang off it. One Platform per process; everything downstream receives
// its dependencies explicitly rather than reaching for globals.
package agrimandi

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/bids"
	"github.com/agrimandi/agrimandi-go/credentials"
	"github.com/agrimandi/agrimandi-go/crops"
	"github.com/agrimandi/agrimandi-go/fpo"
	"github.com/agrimandi/agrimandi-go/internal/config"
	"github.com/agrimandi/agrimandi-go/learning"
	"github.com/agrimandi/agrimandi-go/lots"
	"github.com/agrimandi/agrimandi-go/notifications"
	"github.com/agrimandi/agrimandi-go/registration"
	"github.com/agrimandi/agrimandi-go/schemes"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/transport"
	"github.com/agrimandi/agrimandi-go/wallet"
	"github.com/agrimandi/agrimandi-go/weather"
)

// Platform is the fully wired client. Construct with New.
type Platform struct {
	API     *apiclient.Client
	Session *session.Store

	Crops         *crops.Store
	Lots          *lots.Store
	Bids          *bids.Store
	Wallet        *wallet.Store
	Transport     *transport.Store
	Weather       *weather.Store
	Schemes       *schemes.Store
	FPO           *fpo.Store
	Learning      *learning.Store
	Notifications *notifications.Store

	log zerolog.Logger
}

// Option configures the Platform.
type Option func(*platformConfig)

type platformConfig struct {
	log   zerolog.Logger
	creds credentials.Store
}

// WithLogger sets the logger shared by all components.
func WithLogger(log zerolog.Logger) Option {
	return func(pc *platformConfig) {
		pc.log = log
	}
}

// WithCredentialStore replaces the file-backed credential store
// (primarily for testing).
func WithCredentialStore(store credentials.Store) Option {
	return func(pc *platformConfig) {
		pc.creds = store
	}
}

// New wires the platform from configuration. The API client's 401 signal
// lands in the session store as a forced logout, and every feature store
// registers its reset with the session's logout broadcast.
func New(cfg config.Config, options ...Option) (*Platform, error) {
	pc := &platformConfig{log: zerolog.Nop()}
	for _, opt := range options {
		opt(pc)
	}

	creds := pc.creds
	if creds == nil {
		creds = credentials.NewFileStore(cfg.CredentialsPath, credentials.WithPassphrase(cfg.CredentialsKey))
	}

	api := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithRateLimit(cfg.RequestsPerSecond),
		apiclient.WithLogger(pc.log.With().Str("component", "apiclient").Logger()),
	)

	sess, err := session.New(api, creds,
		session.WithLogger(pc.log.With().Str("component", "session").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[agrimandi.New] session store")
	}

	p := &Platform{
		API:           api,
		Session:       sess,
		Crops:         crops.NewStore(api, sess),
		Lots:          lots.NewStore(api, sess),
		Bids:          bids.NewStore(api, sess),
		Wallet:        wallet.NewStore(api, sess),
		Transport:     transport.NewStore(api, sess),
		Weather:       weather.NewStore(api, sess),
		Schemes:       schemes.NewStore(api, sess),
		FPO:           fpo.NewStore(api, sess),
		Learning:      learning.NewStore(api, sess),
		Notifications: notifications.NewStore(api, sess),
		log:           pc.log,
	}
	return p, nil
}

// NewRegistration starts a registration wizard against this platform's
// backend.
func (p *Platform) NewRegistration() *registration.Wizard {
	return registration.NewWizard(p.API)
}
