// Package client contains the transport side of the medaccount CLI.
//
// # Overview
//
// The package provides:
//  1. An API contract (see the Client interface) covering the account
//     operations the CLI offers: Register, Login, Logout, ChangePassword,
//     session listing and revocation, Dashboard, profile reads and updates,
//     and Health.
//  2. A concrete gRPC implementation (see GRPCClient) that speaks the JSON
//     codec, injects the access token and session id via an interceptor,
//     transparently refreshes an expired access token once and maps gRPC
//     status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrRejected and
// ErrNotLoggedIn.
//
// GRPCClient is safe for concurrent use. Concurrent calls that all hit an
// expired token trigger a single refresh.
package client
