package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Scope is the set of identifiers attached to everything logged or traced for one request.
type Scope struct {
	CorrelationID string
	RequestID     string
	DatasetID     string
	Buyer         string
}

type scopeKey struct{}

func FromContext(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// Ensure assigns a ulid correlation id when ctx has none.
func Ensure(ctx context.Context) (context.Context, Scope) {
	scope := FromContext(ctx)
	if scope.CorrelationID != "" {
		return ctx, scope
	}
	scope.CorrelationID = ulid.Make().String()
	return WithScope(ctx, scope), scope
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	scope := FromContext(ctx)
	scope.RequestID = requestID
	return WithScope(ctx, scope)
}

// WithPurchase records the dataset and buyer a request acts on; empty values keep what is set.
func WithPurchase(ctx context.Context, datasetID, buyer string) context.Context {
	scope := FromContext(ctx)
	if datasetID != "" {
		scope.DatasetID = datasetID
	}
	if buyer != "" {
		scope.Buyer = buyer
	}
	return WithScope(ctx, scope)
}
