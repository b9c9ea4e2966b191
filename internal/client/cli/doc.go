// Package cli provides the interactive snapclient command line.
//
// It wires configuration, the local credential store, the REST service
// clients and the realtime runtime into a REPL. Typical flow: restore the
// saved session (or log in), browse and react to the feed, and chat with
// other users while push notifications are printed as they arrive.
//
// Key features:
//   - Register (with PIN confirmation), login, federated login, logout
//   - Profile view and edit
//   - Feed paging, posting, likes, shares, follows, search and stats
//   - Conversations: list, open, send, mark read
//   - Notification history with routing hints
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp and runREPL for details.
package cli
