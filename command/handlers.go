package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-grants/core"
)

type IncomingPaymentMutator interface {
	Create(ctx context.Context, args core.CreateRemoteIncomingPaymentArgs) (core.IncomingPayment, error)
	Complete(ctx context.Context, url string) (core.IncomingPayment, error)
}

type GrantMutator interface {
	GetOrCreate(ctx context.Context, scope core.GrantScope) (core.Grant, error)
	Delete(ctx context.Context, id string) (core.Grant, error)
}

type CreateRemoteIncomingPaymentCommand struct {
	service IncomingPaymentMutator
}

func NewCreateRemoteIncomingPaymentCommand(service IncomingPaymentMutator) *CreateRemoteIncomingPaymentCommand {
	return &CreateRemoteIncomingPaymentCommand{service: service}
}

func (c *CreateRemoteIncomingPaymentCommand) Execute(ctx context.Context, msg CreateRemoteIncomingPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remote incoming payment service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Create(ctx, msg.Args)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteRemoteIncomingPaymentCommand struct {
	service IncomingPaymentMutator
}

func NewCompleteRemoteIncomingPaymentCommand(service IncomingPaymentMutator) *CompleteRemoteIncomingPaymentCommand {
	return &CompleteRemoteIncomingPaymentCommand{service: service}
}

func (c *CompleteRemoteIncomingPaymentCommand) Execute(ctx context.Context, msg CompleteRemoteIncomingPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remote incoming payment service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Complete(ctx, msg.URL)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type GetOrCreateGrantCommand struct {
	service GrantMutator
}

func NewGetOrCreateGrantCommand(service GrantMutator) *GetOrCreateGrantCommand {
	return &GetOrCreateGrantCommand{service: service}
}

func (c *GetOrCreateGrantCommand) Execute(ctx context.Context, msg GetOrCreateGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.GetOrCreate(ctx, msg.Scope)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteGrantCommand struct {
	service GrantMutator
}

func NewDeleteGrantCommand(service GrantMutator) *DeleteGrantCommand {
	return &DeleteGrantCommand{service: service}
}

func (c *DeleteGrantCommand) Execute(ctx context.Context, msg DeleteGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Delete(ctx, msg.GrantID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
