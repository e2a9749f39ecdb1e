// Package auth implements the polymorphic credential session types, the
// classic and OAuth-to-Xbox-to-game-service auth chains, and the disk-backed
// session database.
package auth

import "github.com/pkg/errors"

// Session is the shared operations surface both session variants implement.
// The persisted type tag drives decoding into the matching concrete type;
// this interface replaces runtime class introspection with a small registry
// keyed by that tag.
type Session interface {
	Type() string
	Fields() map[string]string
	Validate() (bool, error)
	Refresh() error
	Invalidate() error
}

var (
	ErrAuthFailed           = errors.New("auth: authentication failed")
	ErrInconsistentUserHash = errors.New("auth: xsts user hash does not match xbl user hash")
	ErrDoesNotOwnProduct    = errors.New("auth: account does not own the game")
	ErrOutdatedToken        = errors.New("auth: token is outdated and must be re-authenticated")
)

func str(v any) string {
	s, _ := v.(string)
	return s
}
