// Package metadata persists small key/value pairs of CLI state, such as the
// tokens of the current login, in the local SQLite database.
package metadata

import "context"

// Repository is a string key/value store. Get returns "" for absent keys.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}
