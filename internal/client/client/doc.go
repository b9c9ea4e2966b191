// Package client contains the transport-level building blocks of the
// snapclient core.
//
// # Overview
//
//  1. REST contracts for the backends the client consumes: the auth/profile
//     service (AuthClient), the posts service (PostsClient), the
//     interactions service (InteractionsClient) and the statistics service
//     (StatsClient). They share one request core that attaches the bearer
//     credential, encodes JSON and maps HTTP failures onto sentinel errors.
//  2. Local persistence bootstrap (InitDatabase, RunMigrations), which opens
//     the SQLite database and applies the embedded goose migrations.
//
// # Error Handling
//
// Failures are reported with errors that match the sentinels in package
// common via errors.Is:
//
//   - 401               → common.ErrorUnauthorized (caller must log out)
//   - 404               → common.ErrorNotFound
//   - 5xx, network down → common.ErrorUnavailable
//
// Every non-2xx response is an *APIError carrying the status and the
// server's message|error text, retrievable with errors.As.
//
// Validation helpers (ValidateLogin, ValidateRegistration, ...) run before
// any request is issued and return common.ErrorValidation.
//
// Nothing here retries.
package client
