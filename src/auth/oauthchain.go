package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

// OAuthEndpoints holds every endpoint the Microsoft-to-Xbox-to-game-service
// chain talks to. Overridable so tests can point at local fixtures.
type OAuthEndpoints struct {
	Authorize   string
	Token       string
	XBL         string
	XSTS        string
	GameService string
	Profile     string
}

// DefaultOAuthEndpoints points at the real Microsoft/Xbox/Minecraft services.
var DefaultOAuthEndpoints = OAuthEndpoints{
	Authorize:   "https://login.live.com/oauth20_authorize.srf",
	Token:       "https://login.live.com/oauth20_token.srf",
	XBL:         "https://user.auth.xboxlive.com/user/authenticate",
	XSTS:        "https://xsts.auth.xboxlive.com/xsts/authorize",
	GameService: "https://api.minecraftservices.com/authentication/login_with_xbox",
	Profile:     "https://api.minecraftservices.com/minecraft/profile",
}

// OAuthChainSession is the Microsoft-account session variant: an access
// token obtained by chaining an OAuth token through Xbox Live, XSTS, and the
// game service, with a fallback pending-rename captured during validation.
type OAuthChainSession struct {
	AccessToken string
	Username    string
	UUID        string

	RefreshToken string
	ClientID     string
	RedirectURI  string

	// PendingRename holds a server-observed username change until the next
	// Refresh consumes it. Transient: never persisted.
	PendingRename string

	http      *httpclient.Client
	endpoints OAuthEndpoints
}

func (s *OAuthChainSession) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    s.ClientID,
		RedirectURL: s.RedirectURI,
		Endpoint:    oauth2.Endpoint{TokenURL: s.endpoints.Token},
	}
}

// AuthenticationURL builds the Microsoft authorize URL for the given client,
// redirect target, login hint, and nonce.
func AuthenticationURL(endpoints OAuthEndpoints, clientID, redirectURI, email, nonce string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code id_token")
	q.Set("response_mode", "form_post")
	q.Set("scope", "xboxlive.signin offline_access openid email")
	q.Set("login_hint", email)
	q.Set("nonce", nonce)
	return endpoints.Authorize + "?" + q.Encode()
}

// AuthenticateOAuthChain exchanges an authorization code for tokens and runs
// the Xbox Live / XSTS / game-service chain to produce a playable session.
func AuthenticateOAuthChain(client *httpclient.Client, endpoints OAuthEndpoints, clientID, code, redirectURI string) (*OAuthChainSession, error) {
	s := &OAuthChainSession{ClientID: clientID, RedirectURI: redirectURI, http: client, endpoints: endpoints}
	tok, err := s.oauthConfig().Exchange(context.Background(), code)
	if err != nil {
		return nil, errors.Wrap(err, "auth: oauth code exchange")
	}
	s.RefreshToken = tok.RefreshToken
	if err := s.runXboxChain(tok.AccessToken); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OAuthChainSession) Type() string { return "microsoft" }

func (s *OAuthChainSession) Fields() map[string]string {
	return map[string]string{
		"access_token":  s.AccessToken,
		"username":      s.Username,
		"uuid":          s.UUID,
		"refresh_token": s.RefreshToken,
		"client_id":     s.ClientID,
		"redirect_uri":  s.RedirectURI,
	}
}

// Validate fetches the profile; a matching username confirms validity, a
// mismatch records a pending rename instead of mutating Username directly.
func (s *OAuthChainSession) Validate() (bool, error) {
	status, body, err := s.http.JSONRequest(http.MethodGet, s.endpoints.Profile, nil,
		map[string]string{"Authorization": "Bearer " + s.AccessToken}, false)
	if err != nil {
		return false, errors.Wrap(err, "auth: oauth validate")
	}
	if status != http.StatusOK {
		return false, nil
	}
	name := str(body["name"])
	if name == s.Username {
		return true, nil
	}
	s.PendingRename = name
	return false, nil
}

// Refresh consumes a pending rename if one is recorded; otherwise it runs the
// full token-refresh chain documented for this provider.
func (s *OAuthChainSession) Refresh() error {
	if s.PendingRename != "" {
		s.Username = s.PendingRename
		s.PendingRename = ""
		return nil
	}

	ts := s.oauthConfig().TokenSource(context.Background(), &oauth2.Token{RefreshToken: s.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return errors.Wrap(err, "auth: oauth token refresh")
	}
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
	return s.runXboxChain(tok.AccessToken)
}

// Invalidate is a local no-op: neither Xbox Live nor the Minecraft game
// service documents a revocation endpoint for this chain.
func (s *OAuthChainSession) Invalidate() error { return nil }

func displayClaimHash(body map[string]any) string {
	claims, _ := body["DisplayClaims"].(map[string]any)
	xui, _ := claims["xui"].([]any)
	if len(xui) == 0 {
		return ""
	}
	entry, _ := xui[0].(map[string]any)
	return str(entry["uhs"])
}

func (s *OAuthChainSession) runXboxChain(msAccessToken string) error {
	xblStatus, xblBody, err := s.http.JSONRequest(http.MethodPost, s.endpoints.XBL, map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + msAccessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}, nil, false)
	if err != nil {
		return errors.Wrap(err, "auth: xbl authenticate")
	}
	if xblStatus != http.StatusOK {
		return errors.Wrapf(ErrAuthFailed, "xbl authenticate status %d", xblStatus)
	}
	xblToken := str(xblBody["Token"])
	xblHash := displayClaimHash(xblBody)

	xstsStatus, xstsBody, err := s.http.JSONRequest(http.MethodPost, s.endpoints.XSTS, map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []any{xblToken},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}, nil, false)
	if err != nil {
		return errors.Wrap(err, "auth: xsts authorize")
	}
	if xstsStatus != http.StatusOK {
		return errors.Wrapf(ErrAuthFailed, "xsts authorize status %d", xstsStatus)
	}
	xstsToken := str(xstsBody["Token"])
	xstsHash := displayClaimHash(xstsBody)
	if xstsHash != xblHash {
		return ErrInconsistentUserHash
	}

	gameStatus, gameBody, err := s.http.JSONRequest(http.MethodPost, s.endpoints.GameService, map[string]any{
		"identityToken": "XBL3.0 x=" + xstsHash + ";" + xstsToken,
	}, nil, false)
	if err != nil {
		return errors.Wrap(err, "auth: game service login")
	}
	switch gameStatus {
	case http.StatusNotFound:
		return ErrDoesNotOwnProduct
	case http.StatusUnauthorized:
		return ErrOutdatedToken
	case http.StatusOK:
	default:
		return errors.Wrapf(ErrAuthFailed, "game service login status %d", gameStatus)
	}
	gameAccessToken := str(gameBody["access_token"])

	profileStatus, profileBody, err := s.http.JSONRequest(http.MethodGet, s.endpoints.Profile, nil,
		map[string]string{"Authorization": "Bearer " + gameAccessToken}, false)
	if err != nil {
		return errors.Wrap(err, "auth: fetch profile")
	}
	switch profileStatus {
	case http.StatusNotFound:
		return ErrDoesNotOwnProduct
	case http.StatusUnauthorized:
		return ErrOutdatedToken
	case http.StatusOK:
	default:
		return errors.Wrapf(ErrAuthFailed, "profile fetch status %d", profileStatus)
	}

	s.AccessToken = gameAccessToken
	s.UUID = str(profileBody["id"])
	s.Username = str(profileBody["name"])
	return nil
}
