package grants

import (
	"fmt"

	grantscommand "github.com/goliatone/go-grants/command"
	grantsquery "github.com/goliatone/go-grants/query"
)

type Commands struct {
	CreateRemoteIncomingPayment   *grantscommand.CreateRemoteIncomingPaymentCommand
	CompleteRemoteIncomingPayment *grantscommand.CompleteRemoteIncomingPaymentCommand
	GetOrCreateGrant              *grantscommand.GetOrCreateGrantCommand
	DeleteGrant                   *grantscommand.DeleteGrantCommand
}

type Queries struct {
	GetRemoteIncomingPayment *grantsquery.GetRemoteIncomingPaymentQuery
	FindGrant                *grantsquery.FindGrantQuery
}

// IncomingPayments is the remote incoming payment surface used by the facade.
type IncomingPayments interface {
	grantscommand.IncomingPaymentMutator
	grantsquery.IncomingPaymentReader
}

// Grants is the grant cache surface used by the facade.
type Grants interface {
	grantscommand.GrantMutator
	grantsquery.GrantReader
}

type Facade struct {
	service  *Service
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	incomingPayments IncomingPayments
	grants           Grants
}

// WithIncomingPayments replaces the service's remote incoming payment API.
func WithIncomingPayments(payments IncomingPayments) FacadeOption {
	return func(options *facadeOptions) {
		options.incomingPayments = payments
	}
}

// WithGrants replaces the service's grant API.
func WithGrants(grants Grants) FacadeOption {
	return func(options *facadeOptions) {
		options.grants = grants
	}
}

func NewFacade(service *Service, opts ...FacadeOption) (*Facade, error) {
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if service != nil {
		if cfg.incomingPayments == nil {
			cfg.incomingPayments = service.IncomingPayments()
		}
		if cfg.grants == nil {
			cfg.grants = service.Grants()
		}
	}
	if cfg.incomingPayments == nil || cfg.grants == nil {
		return nil, fmt.Errorf("grants: service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateRemoteIncomingPayment:   grantscommand.NewCreateRemoteIncomingPaymentCommand(cfg.incomingPayments),
		CompleteRemoteIncomingPayment: grantscommand.NewCompleteRemoteIncomingPaymentCommand(cfg.incomingPayments),
		GetOrCreateGrant:              grantscommand.NewGetOrCreateGrantCommand(cfg.grants),
		DeleteGrant:                   grantscommand.NewDeleteGrantCommand(cfg.grants),
	}
	facade.queries = Queries{
		GetRemoteIncomingPayment: grantsquery.NewGetRemoteIncomingPaymentQuery(cfg.incomingPayments),
		FindGrant:                grantsquery.NewFindGrantQuery(cfg.grants),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() *Service {
	if f == nil {
		return nil
	}
	return f.service
}
