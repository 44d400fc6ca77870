// Package auth implements the admission gate that every page store call
// passes through.
//
// A [Gate] moves through three states: uninitialized, admitted and closed.
// It is admitted once a caller presents the configured token and stays
// admitted until the session is closed; a closed gate never reopens.
// [Sessions] keeps one gate per HTTP session, and [Admit] drives the
// interactive prompt loop used by the CLI.
package auth
