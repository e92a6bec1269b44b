package graph

import (
	"context"

	"forum/pkg/loader"
)

type ctxKey string

const loadersKey ctxKey = "loaders"

// RequestLoaders are the batched entity loaders built for one request
// and discarded with it.
type RequestLoaders struct {
	Users *loader.UserLoader
	Votes *loader.VoteLoader
}

func WithLoaders(ctx context.Context, l *RequestLoaders) context.Context {
	return context.WithValue(ctx, loadersKey, l)
}

func Loaders(ctx context.Context) *RequestLoaders {
	l, _ := ctx.Value(loadersKey).(*RequestLoaders)
	return l
}
