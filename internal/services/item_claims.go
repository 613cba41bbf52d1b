package services

import (
	"context"
	"sync"
)

type itemClaimsKey struct{}

// itemClaims tracks the item IDs already assigned to pieces of the current
// batch. Each piece must end up with its own item record, so an item claimed
// once is never handed to a second piece.
type itemClaims struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// withItemClaims attaches a fresh claim set to the context. Calling it on a
// context that already carries one returns the context unchanged.
func withItemClaims(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Value(itemClaimsKey{}).(*itemClaims); ok {
		return ctx
	}
	return context.WithValue(ctx, itemClaimsKey{}, &itemClaims{claimed: map[string]struct{}{}})
}

// claimItem reserves the item for the calling piece. It returns false when the
// item was already claimed within this batch. A context without a claim set
// always grants the claim.
func claimItem(ctx context.Context, itemID string) bool {
	claims, ok := ctx.Value(itemClaimsKey{}).(*itemClaims)
	if !ok {
		return true
	}

	claims.mu.Lock()
	defer claims.mu.Unlock()
	if _, taken := claims.claimed[itemID]; taken {
		return false
	}
	claims.claimed[itemID] = struct{}{}
	return true
}
