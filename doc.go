// Package accounts implements an account and credential authority: credential
// verification with JWT session issuance, account provisioning with a
// pending-activation state, and self-service password recovery backed by
// single-use, time-limited reset codes.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. An account is created
//     pending, becomes active only through a successful activation, and is
//     soft-deleted by admin action. AccountStateMachine centralizes the
//     transition graph and emits activity events for every change.
//
// Credential lifecycle:
//   - Registration creates the pending account and its one-time activation
//     token inside a single transaction; the activation notification is
//     dispatched best-effort after commit.
//   - Activation and password-reset completion consume their codes through
//     conditional updates, so concurrent attempts with the same code resolve
//     to exactly one winner.
//   - Issuing a new password reset supersedes any outstanding request for the
//     same account; expiry is enforced lazily when the code is redeemed.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther, the command
//     handlers, and the state machine. Sinks run best-effort (errors are
//     logged) so auditing never blocks authentication. Login failures are
//     recorded with their internal reason even though callers receive a
//     uniform credential error.
package accounts
