package grants

import "github.com/goliatone/go-grants/core"

type Config = core.Config
type GrantsConfig = core.GrantsConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type AuthServerStore = core.AuthServerStore
type GrantStore = core.GrantStore
type GrantCache = core.GrantCache
type AuthorizationServerClient = core.AuthorizationServerClient
type ResourceServerClient = core.ResourceServerClient

type Grant = core.Grant
type GrantScope = core.GrantScope
type AccessType = core.AccessType
type AccessAction = core.AccessAction
type IncomingPayment = core.IncomingPayment
type CreateRemoteIncomingPaymentArgs = core.CreateRemoteIncomingPaymentArgs

var (
	WithLogger               = core.WithLogger
	WithLoggerProvider       = core.WithLoggerProvider
	WithMetricsRecorder      = core.WithMetricsRecorder
	WithErrorMapper          = core.WithErrorMapper
	WithPersistenceClient    = core.WithPersistenceClient
	WithRepositoryFactory    = core.WithRepositoryFactory
	WithConfigProvider       = core.WithConfigProvider
	WithOptionsResolver      = core.WithOptionsResolver
	WithAuthServerStore      = core.WithAuthServerStore
	WithGrantStore           = core.WithGrantStore
	WithGrantCache           = core.WithGrantCache
	WithAuthServerClient     = core.WithAuthServerClient
	WithResourceServerClient = core.WithResourceServerClient
	WithClock                = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
