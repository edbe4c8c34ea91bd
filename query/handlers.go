package query

import (
	"context"

	"github.com/goliatone/go-grants/core"
)

type IncomingPaymentReader interface {
	Get(ctx context.Context, url string) (core.IncomingPayment, error)
}

type GrantReader interface {
	Get(ctx context.Context, scope core.GrantScope) (core.Grant, bool, error)
}

type GetRemoteIncomingPaymentQuery struct {
	reader IncomingPaymentReader
}

func NewGetRemoteIncomingPaymentQuery(reader IncomingPaymentReader) *GetRemoteIncomingPaymentQuery {
	return &GetRemoteIncomingPaymentQuery{reader: reader}
}

func (q *GetRemoteIncomingPaymentQuery) Query(ctx context.Context, msg GetRemoteIncomingPaymentMessage) (core.IncomingPayment, error) {
	if q == nil || q.reader == nil {
		return core.IncomingPayment{}, queryDependencyError("query: remote incoming payment reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.IncomingPayment{}, err
	}
	return q.reader.Get(ctx, msg.URL)
}

// FindGrantQuery looks up a stored grant without contacting the
// authorization server.
type FindGrantQuery struct {
	reader GrantReader
}

func NewFindGrantQuery(reader GrantReader) *FindGrantQuery {
	return &FindGrantQuery{reader: reader}
}

func (q *FindGrantQuery) Query(ctx context.Context, msg FindGrantMessage) (FindGrantResult, error) {
	if q == nil || q.reader == nil {
		return FindGrantResult{}, queryDependencyError("query: grant reader is required")
	}
	if err := msg.Validate(); err != nil {
		return FindGrantResult{}, err
	}
	grant, found, err := q.reader.Get(ctx, msg.Scope)
	if err != nil {
		return FindGrantResult{}, err
	}
	return FindGrantResult{Grant: grant, Found: found}, nil
}
