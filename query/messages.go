package query

import (
	"strings"

	"github.com/goliatone/go-grants/core"
)

const (
	TypeGetRemoteIncomingPayment = "grants.query.remote_incoming_payment.get"
	TypeFindGrant                = "grants.query.grant.find"
)

type GetRemoteIncomingPaymentMessage struct {
	URL string
}

func (GetRemoteIncomingPaymentMessage) Type() string { return TypeGetRemoteIncomingPayment }

func (m GetRemoteIncomingPaymentMessage) Validate() error {
	if strings.TrimSpace(m.URL) == "" {
		return queryValidationError("url", "incoming payment url is required")
	}
	return nil
}

type FindGrantMessage struct {
	Scope core.GrantScope
}

func (FindGrantMessage) Type() string { return TypeFindGrant }

func (m FindGrantMessage) Validate() error {
	if strings.TrimSpace(m.Scope.AuthServerURL) == "" {
		return queryValidationError("auth_server_url", "auth server url is required")
	}
	if len(m.Scope.AccessActions) == 0 {
		return queryValidationError("access_actions", "at least one access action is required")
	}
	return nil
}

// FindGrantResult reports whether a stored grant covers the requested scope.
type FindGrantResult struct {
	Grant core.Grant
	Found bool
}
