package command

import (
	"strings"

	"github.com/goliatone/go-grants/core"
)

const (
	TypeCreateRemoteIncomingPayment   = "grants.command.remote_incoming_payment.create"
	TypeCompleteRemoteIncomingPayment = "grants.command.remote_incoming_payment.complete"
	TypeGetOrCreateGrant              = "grants.command.grant.get_or_create"
	TypeDeleteGrant                   = "grants.command.grant.delete"
)

type CreateRemoteIncomingPaymentMessage struct {
	Args core.CreateRemoteIncomingPaymentArgs
}

func (CreateRemoteIncomingPaymentMessage) Type() string { return TypeCreateRemoteIncomingPayment }

func (m CreateRemoteIncomingPaymentMessage) Validate() error {
	if strings.TrimSpace(m.Args.WalletAddressURL) == "" {
		return commandValidationError("wallet_address_url", "wallet address url is required")
	}
	return commandWrapValidation(m.Args.Validate(), "command: invalid remote incoming payment")
}

type CompleteRemoteIncomingPaymentMessage struct {
	URL string
}

func (CompleteRemoteIncomingPaymentMessage) Type() string { return TypeCompleteRemoteIncomingPayment }

func (m CompleteRemoteIncomingPaymentMessage) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return commandValidationError("url", "incoming payment url is required")
	}
	return nil
}

type GetOrCreateGrantMessage struct {
	Scope core.GrantScope
}

func (GetOrCreateGrantMessage) Type() string { return TypeGetOrCreateGrant }

func (m GetOrCreateGrantMessage) Validate() error {
	return commandWrapValidation(m.Scope.Validate(), "command: invalid grant scope")
}

type DeleteGrantMessage struct {
	GrantID string
}

func (DeleteGrantMessage) Type() string { return TypeDeleteGrant }

func (m DeleteGrantMessage) Validate() error {
	if strings.TrimSpace(m.GrantID) == "" {
		return commandValidationError("grant_id", "grant id is required")
	}
	return nil
}
