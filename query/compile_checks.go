package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-grants/core"
)

var (
	_ gocmd.Querier[GetRemoteIncomingPaymentMessage, core.IncomingPayment] = (*GetRemoteIncomingPaymentQuery)(nil)
	_ gocmd.Querier[FindGrantMessage, FindGrantResult]                     = (*FindGrantQuery)(nil)

	_ IncomingPaymentReader = (*core.RemoteIncomingPaymentService)(nil)
	_ GrantReader           = (*core.GrantService)(nil)
)
