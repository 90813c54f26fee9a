// Package automation drives the campaign admin form in a real browser.
// The orchestrator only sees the Automator and Session interfaces, so tests
// and dry runs can substitute a fake.
package automation

import (
	"context"
	"errors"
	"strings"
)

// Session is one logged-in browser page. Sessions are not safe for concurrent
// use; each worker owns exactly one.
type Session interface {
	// Login authenticates the page against the campaign dashboard.
	Login(ctx context.Context) error

	// ProcessCampaign rewrites the campaign's admin assignment rows to
	// exactly the given admins, in order, and saves the form.
	ProcessCampaign(ctx context.Context, campaignID int64, admins []string) error

	// Close releases the page. Safe to call more than once.
	Close() error
}

// Automator creates browser sessions against a shared browser instance.
type Automator interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// AuthError marks a login failure. Not retryable with the same credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// SessionLostError marks a dead browser page or connection. The worker should
// discard the session, open a fresh one and log in again.
type SessionLostError struct {
	Err error
}

func (e *SessionLostError) Error() string { return "browser session lost: " + e.Err.Error() }
func (e *SessionLostError) Unwrap() error { return e.Err }

// sessionLostSignatures are substrings the browser driver emits when the
// page or its target has gone away underneath us.
var sessionLostSignatures = []string{
	"Target closed",
	"target closed",
	"context was destroyed",
	"session closed",
	"websocket: close",
	"use of closed network connection",
}

// IsSessionLost reports whether err indicates the browser session died and a
// re-login on a fresh page may succeed.
func IsSessionLost(err error) bool {
	if err == nil {
		return false
	}
	var lost *SessionLostError
	if errors.As(err, &lost) {
		return true
	}
	msg := err.Error()
	for _, sig := range sessionLostSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// classify wraps driver errors so callers can dispatch on them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsSessionLost(err) {
		return &SessionLostError{Err: err}
	}
	return err
}
