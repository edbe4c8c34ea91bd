package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service bundles the grant cache and the remote resource client over a
// single set of collaborators.
type Service struct {
	config           Config
	authServers      *AuthServerService
	grants           *GrantService
	incomingPayments *RemoteIncomingPaymentService
}

type ServiceDependencies struct {
	Logger               Logger
	LoggerProvider       LoggerProvider
	MetricsRecorder      MetricsRecorder
	ErrorMapper          ErrorMapper
	AuthServerStore      AuthServerStore
	GrantStore           GrantStore
	AuthServerClient     AuthorizationServerClient
	ResourceServerClient ResourceServerClient
}

// serviceRuntime carries the resolved ambient dependencies shared by every
// service in this package.
type serviceRuntime struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	now             func() time.Time
}

type resolvedBuilder struct {
	runtime serviceRuntime
	builder serviceBuilder
}

func resolveBuilder(cfg Config, opts ...Option) (resolvedBuilder, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("grants", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return resolvedBuilder{}, mapError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return resolvedBuilder{}, mapError(builder.errorMapper, err)
	}

	if (builder.authServerStore == nil || builder.grantStore == nil) && builder.repositoryFactory != nil {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return resolvedBuilder{}, mapError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provider, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provider
		}
		if stores != nil {
			if builder.authServerStore == nil {
				builder.authServerStore = stores.AuthServerStore()
			}
			if builder.grantStore == nil {
				builder.grantStore = stores.GrantStore()
			}
		}
	}

	return resolvedBuilder{
		runtime: serviceRuntime{
			config:          finalConfig,
			logger:          logger,
			loggerProvider:  provider,
			metricsRecorder: builder.metricsRecorder,
			errorMapper:     builder.errorMapper,
			now:             builder.now,
		},
		builder: builder,
	}, nil
}

func (r serviceRuntime) named(name string) serviceRuntime {
	if r.loggerProvider != nil {
		if named := r.loggerProvider.GetLogger(name); named != nil {
			r.logger = glog.Ensure(named)
		}
	}
	return r
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	resolved, err := resolveBuilder(cfg, opts...)
	if err != nil {
		return nil, err
	}

	authServers, err := newAuthServerService(resolved)
	if err != nil {
		return nil, err
	}
	grants, err := newGrantService(resolved, authServers)
	if err != nil {
		return nil, err
	}
	var cache GrantCache = grants
	if resolved.builder.grantCache != nil {
		cache = resolved.builder.grantCache
	}
	incomingPayments, err := newRemoteIncomingPaymentService(resolved, cache)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:           resolved.runtime.config,
		authServers:      authServers,
		grants:           grants,
		incomingPayments: incomingPayments,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) AuthServers() *AuthServerService {
	if s == nil {
		return nil
	}
	return s.authServers
}

func (s *Service) Grants() *GrantService {
	if s == nil {
		return nil
	}
	return s.grants
}

func (s *Service) IncomingPayments() *RemoteIncomingPaymentService {
	if s == nil {
		return nil
	}
	return s.incomingPayments
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil || s.grants == nil {
		return ServiceDependencies{}
	}
	runtime := s.grants.runtime
	deps := ServiceDependencies{
		Logger:           runtime.logger,
		LoggerProvider:   runtime.loggerProvider,
		MetricsRecorder:  runtime.metricsRecorder,
		ErrorMapper:      runtime.errorMapper,
		AuthServerStore:  s.grants.authServers.store,
		GrantStore:       s.grants.store,
		AuthServerClient: s.grants.client,
	}
	if s.incomingPayments != nil {
		deps.ResourceServerClient = s.incomingPayments.client
	}
	return deps
}

func requireDependency(name string, present bool) error {
	if present {
		return nil
	}
	return fmt.Errorf("core: %s is required", name)
}
