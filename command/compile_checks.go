package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-grants/core"
)

var (
	_ gocmd.Commander[CreateRemoteIncomingPaymentMessage]   = (*CreateRemoteIncomingPaymentCommand)(nil)
	_ gocmd.Commander[CompleteRemoteIncomingPaymentMessage] = (*CompleteRemoteIncomingPaymentCommand)(nil)
	_ gocmd.Commander[GetOrCreateGrantMessage]              = (*GetOrCreateGrantCommand)(nil)
	_ gocmd.Commander[DeleteGrantMessage]                   = (*DeleteGrantCommand)(nil)

	_ IncomingPaymentMutator = (*core.RemoteIncomingPaymentService)(nil)
	_ GrantMutator           = (*core.GrantService)(nil)
)
