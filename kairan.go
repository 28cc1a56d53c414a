// Package kairan links external OAuth identities to internal accounts. It
// bundles an identity bridge service (server side) exposed through a single
// action endpoint, plus the client orchestrator in the client subpackage.
package kairan

import (
	"log/slog"
	"time"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/provider"
	"github.com/kairan-app/kairan/services"
)

// interfaces
type (
	StorageAdapter   = core.StorageAdapter
	AccountDirectory = core.AccountDirectory
	LinkStorage      = core.LinkStorage
	SessionStorage   = core.SessionStorage
	HintStore        = core.HintStore
	HTTPAdapter      = core.HTTPAdapter
	ActionHandler    = core.ActionHandler
	SessionResolver  = core.SessionResolver
	SessionCache     = core.SessionCache

	OAuthProvider = provider.OAuthProvider
)

// structs
type (
	BridgeConfig  = services.BridgeConfig
	SessionConfig = core.SessionConfig
	CacheConfig   = core.CacheConfig

	BridgeService    = services.BridgeService
	ActionDispatcher = services.ActionDispatcher
	SessionManager   = core.SessionManager
)

type (
	ExternalIdentity = core.ExternalIdentity
	IdentityLink     = core.IdentityLink
	InternalAccount  = core.InternalAccount
	AuthTicket       = core.AuthTicket
	Session          = core.Session
	SessionData      = core.SessionData
	CacheStats       = core.CacheStats
	RequestMeta      = core.RequestMeta
)

const defaultBasePath = "/auth"

// Constructors & helpers (convenience re-exports)
var (
	NewInMemorySessionCache = core.NewInMemorySessionCache
	DefaultSessionConfig    = core.DefaultSessionConfig
	PlaceholderEmail        = core.PlaceholderEmail
	NewRegistry             = provider.NewRegistry
)

var (
	ErrProviderUnavailable  = core.ErrProviderUnavailable
	ErrDirectoryUnavailable = core.ErrDirectoryUnavailable
)

var (
	ErrMissingRedirectParams      = core.ErrMissingRedirectParams
	ErrMalformedProviderResponse  = core.ErrMalformedProviderResponse
	ErrStateMismatch              = core.ErrStateMismatch
	ErrEmbeddedTokenSubjectChange = core.ErrEmbeddedTokenSubjectChange
	ErrLinkConflict               = core.ErrLinkConflict
)

var (
	ErrAccountExists   = core.ErrAccountExists
	ErrAccountNotFound = core.ErrAccountNotFound
	ErrLinkNotFound    = core.ErrLinkNotFound
	ErrTicketNotFound  = core.ErrTicketNotFound
	ErrTicketExpired   = core.ErrTicketExpired
)

var (
	ErrInvalidToken    = core.ErrInvalidToken
	ErrSessionNotFound = core.ErrSessionNotFound
	ErrSessionExpired  = core.ErrSessionExpired
	ErrCacheNotFound   = core.ErrCacheNotFound
)

var (
	ErrProviderRequired    = core.ErrProviderRequired
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
)

// Config wires the bridge out of adapters and providers.
type Config struct {
	// Providers are the OAuth providers the bridge can resolve identities
	// with. The first one is the default unless DefaultProvider says
	// otherwise.
	Providers       []provider.OAuthProvider
	DefaultProvider string

	Database core.StorageAdapter
	HTTP     core.HTTPAdapter

	// RedirectURI is the default OAuth callback URL.
	RedirectURI string

	// TicketTTL bounds single-use ticket lifetime (default 5 minutes).
	TicketTTL time.Duration

	SessionConfig *core.SessionConfig
	SessionCache  core.SessionCache
	DisableCache  bool

	// BasePath prefixes the action endpoint (default "/auth").
	BasePath string

	Logger *slog.Logger
}

// Kairan is the wired bridge: service, dispatcher and session manager.
type Kairan struct {
	Bridge         *services.BridgeService
	Dispatcher     *services.ActionDispatcher
	SessionManager *core.SessionManager
	BasePath       string
}

func New(config Config) (*Kairan, error) {
	if len(config.Providers) == 0 {
		return nil, ErrProviderRequired
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cache := config.SessionCache
	if cache == nil && !config.DisableCache {
		cache = core.NewInMemorySessionCache(core.CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		})
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		defaults := core.DefaultSessionConfig()
		sessionConfig = &defaults
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	defaultProvider := config.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = config.Providers[0].Name()
	}

	sessionManager := core.NewSessionManager(*sessionConfig, config.Database, cache)

	bridge := services.NewBridgeService(
		services.BridgeConfig{
			RedirectURI: config.RedirectURI,
			TicketTTL:   config.TicketTTL,
		},
		config.Database,
		provider.NewRegistry(config.Providers...),
		defaultProvider,
		sessionManager,
		config.Logger,
	)

	dispatcher := services.NewActionDispatcher(bridge)

	if err := config.HTTP.RegisterRoutes(dispatcher, basePath); err != nil {
		return nil, err
	}

	return &Kairan{
		Bridge:         bridge,
		Dispatcher:     dispatcher,
		SessionManager: sessionManager,
		BasePath:       basePath,
	}, nil
}
