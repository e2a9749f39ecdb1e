package auth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

// ClassicEndpoints holds the four authserver endpoints a ClassicSession
// talks to. Overridable so tests can point at a local fixture server.
type ClassicEndpoints struct {
	Authenticate string
	Refresh      string
	Validate     string
	Invalidate   string
}

// DefaultClassicEndpoints points at the Mojang authserver.
var DefaultClassicEndpoints = ClassicEndpoints{
	Authenticate: "https://authserver.mojang.com/authenticate",
	Refresh:      "https://authserver.mojang.com/refresh",
	Validate:     "https://authserver.mojang.com/validate",
	Invalidate:   "https://authserver.mojang.com/invalidate",
}

// ClassicSession is the Yggdrasil-style credential-exchange session variant.
type ClassicSession struct {
	AccessToken string
	Username    string
	UUID        string
	ClientToken string

	http      *httpclient.Client
	endpoints ClassicEndpoints
}

// AuthenticateClassic exchanges email/password for a new session, generating
// a fresh client token.
func AuthenticateClassic(client *httpclient.Client, endpoints ClassicEndpoints, email, password string) (*ClassicSession, error) {
	status, body, err := client.JSONRequest(http.MethodPost, endpoints.Authenticate, map[string]any{
		"agent":       map[string]any{"name": "Minecraft", "version": 1},
		"username":    email,
		"password":    password,
		"clientToken": uuid.NewString(),
		"requestUser": true,
	}, nil, false)
	if err != nil {
		return nil, errors.Wrap(err, "auth: classic authenticate")
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrAuthFailed, "classic authenticate status %d", status)
	}

	profile, _ := body["selectedProfile"].(map[string]any)
	clientToken, _ := body["clientToken"].(string)
	return &ClassicSession{
		AccessToken: str(body["accessToken"]),
		Username:    str(profile["name"]),
		UUID:        str(profile["id"]),
		ClientToken: clientToken,
		http:        client,
		endpoints:   endpoints,
	}, nil
}

// NewClassicSession reconstructs a session from persisted fields.
func NewClassicSession(client *httpclient.Client, endpoints ClassicEndpoints, accessToken, username, uid, clientToken string) *ClassicSession {
	return &ClassicSession{
		AccessToken: accessToken,
		Username:    username,
		UUID:        uid,
		ClientToken: clientToken,
		http:        client,
		endpoints:   endpoints,
	}
}

func (s *ClassicSession) Type() string { return "yggdrasil" }

func (s *ClassicSession) Fields() map[string]string {
	return map[string]string{
		"access_token": s.AccessToken,
		"username":     s.Username,
		"uuid":         s.UUID,
		"client_token": s.ClientToken,
	}
}

// Validate succeeds iff the authserver returns 204.
func (s *ClassicSession) Validate() (bool, error) {
	status, _, err := s.http.JSONRequest(http.MethodPost, s.endpoints.Validate, map[string]any{
		"accessToken": s.AccessToken,
		"clientToken": s.ClientToken,
	}, nil, true)
	if err != nil {
		return false, errors.Wrap(err, "auth: classic validate")
	}
	return status == http.StatusNoContent, nil
}

// Refresh replaces access_token and username from the refresh response.
func (s *ClassicSession) Refresh() error {
	status, body, err := s.http.JSONRequest(http.MethodPost, s.endpoints.Refresh, map[string]any{
		"accessToken": s.AccessToken,
		"clientToken": s.ClientToken,
		"requestUser": true,
	}, nil, false)
	if err != nil {
		return errors.Wrap(err, "auth: classic refresh")
	}
	if status != http.StatusOK {
		return errors.Wrapf(ErrAuthFailed, "classic refresh status %d", status)
	}
	s.AccessToken = str(body["accessToken"])
	if profile, ok := body["selectedProfile"].(map[string]any); ok {
		s.Username = str(profile["name"])
	}
	return nil
}

// Invalidate is best-effort: the server is notified, but failures are not
// surfaced since the local session is considered discarded regardless.
func (s *ClassicSession) Invalidate() error {
	s.http.JSONRequest(http.MethodPost, s.endpoints.Invalidate, map[string]any{
		"accessToken": s.AccessToken,
		"clientToken": s.ClientToken,
	}, nil, true)
	return nil
}
