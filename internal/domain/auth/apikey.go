// Package auth resolves API keys to shop users. Key lifecycle (issuing,
// rotation, revocation UIs) lives outside this service; only lookup and
// hashing are needed here because carts and orders are per-user.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Scope names checked by the HTTP layer.
const (
	// ScopeShop allows cart, checkout, catalog, and review operations.
	ScopeShop = "shop"
	// ScopeAnalytics allows the read-side analytics endpoints.
	ScopeAnalytics = "analytics"
	// ScopeAdmin allows post-hoc order mutation (discounts) and the
	// inactive-cart sweep.
	ScopeAdmin = "admin"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// Key is a validated API key bound to a shop user.
type Key struct {
	ID      string
	UserID  int64
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the named scope.
func (k *Key) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of active API keys by their peppered hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}

// HashKey computes the HMAC-SHA256 hex digest of an API key under the
// server-side pepper. The same function is used at seed time and on every
// request, so a leaked database alone cannot be used to mint valid keys.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
