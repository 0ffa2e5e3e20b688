// Package cli provides the interactive medaccount command-line client.
//
// It wires configuration, the local state database, the gRPC client and the
// session service, then runs a REPL for the account commands:
//   - register, login, logout, passwd
//   - sessions, revoke <id>, dashboard
//   - profile, setprofile <field> <value>
//
// A saved login is restored on start, so the user stays signed in across
// runs until logout. The REPL is started via App.Run(ctx).
package cli
