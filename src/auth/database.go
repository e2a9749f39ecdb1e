package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

// Database is the disk-persisted, polymorphic session store: type tag to
// key (email or username) to Session.
type Database struct {
	path       string
	legacyPath string

	http             *httpclient.Client
	classicEndpoints ClassicEndpoints
	oauthEndpoints   OAuthEndpoints

	sessions map[string]map[string]Session
}

// NewDatabase builds a Database backed by path, importing legacyPath on
// first load if path does not yet exist. client is used to rebuild live
// sessions read back from disk.
func NewDatabase(path, legacyPath string, client *httpclient.Client) *Database {
	return &Database{
		path:             path,
		legacyPath:       legacyPath,
		http:             client,
		classicEndpoints: DefaultClassicEndpoints,
		oauthEndpoints:   DefaultOAuthEndpoints,
		sessions:         map[string]map[string]Session{},
	}
}

// Load clears the in-memory map and repopulates it from disk. If the
// primary file is absent, a legacy import is attempted first; the legacy
// file is deleted only once the import succeeds. Any decode or shape error
// leaves the in-memory map empty rather than propagating.
func (d *Database) Load() error {
	d.sessions = map[string]map[string]Session{}

	raw, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			if importErr := d.importLegacy(); importErr == nil {
				os.Remove(d.legacyPath)
			}
		}
		return nil
	}

	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		d.sessions = map[string]map[string]Session{}
		return nil
	}

	for tag, body := range doc {
		sessionsRaw, ok := body["sessions"].(map[string]any)
		if !ok {
			d.sessions = map[string]map[string]Session{}
			return nil
		}
		bucket := map[string]Session{}
		for key, recRaw := range sessionsRaw {
			rec, ok := recRaw.(map[string]any)
			if !ok {
				d.sessions = map[string]map[string]Session{}
				return nil
			}
			if session := d.decode(tag, rec); session != nil {
				bucket[key] = session
			}
		}
		if len(bucket) > 0 {
			d.sessions[tag] = bucket
		}
	}
	return nil
}

func (d *Database) decode(tag string, rec map[string]any) Session {
	switch tag {
	case "yggdrasil":
		return NewClassicSession(d.http, d.classicEndpoints,
			str(rec["access_token"]), str(rec["username"]), str(rec["uuid"]), str(rec["client_token"]))
	case "microsoft":
		return &OAuthChainSession{
			AccessToken:  str(rec["access_token"]),
			Username:     str(rec["username"]),
			UUID:         str(rec["uuid"]),
			RefreshToken: str(rec["refresh_token"]),
			ClientID:     str(rec["client_id"]),
			RedirectURI:  str(rec["redirect_uri"]),
			http:         d.http,
			endpoints:    d.oauthEndpoints,
		}
	default:
		// Unknown type tags are skipped silently.
		return nil
	}
}

// importLegacy parses the newline-delimited, space-separated 5-token legacy
// file ("<key> <client_token> <username> <uuid> <access_token>") into
// classic sessions.
func (d *Database) importLegacy() error {
	raw, err := os.ReadFile(d.legacyPath)
	if err != nil {
		return err
	}
	bucket := map[string]Session{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) != 5 {
			continue
		}
		key, clientToken, username, uid, accessToken := tokens[0], tokens[1], tokens[2], tokens[3], tokens[4]
		bucket[key] = NewClassicSession(d.http, d.classicEndpoints, accessToken, username, uid, clientToken)
	}
	d.sessions["yggdrasil"] = bucket
	return nil
}

// Put stores session under key, bucketed by its type tag.
func (d *Database) Put(key string, session Session) {
	tag := session.Type()
	if d.sessions[tag] == nil {
		d.sessions[tag] = map[string]Session{}
	}
	d.sessions[tag][key] = session
}

// Get returns the session stored under (typeTag, key), if any.
func (d *Database) Get(typeTag, key string) (Session, bool) {
	bucket, ok := d.sessions[typeTag]
	if !ok {
		return nil, false
	}
	s, ok := bucket[key]
	return s, ok
}

// Remove deletes the session stored under (typeTag, key), if any.
func (d *Database) Remove(typeTag, key string) {
	if bucket, ok := d.sessions[typeTag]; ok {
		delete(bucket, key)
	}
}

// Save writes the database atomically (write-then-rename), each session
// contributing exactly the fields its variant declares.
func (d *Database) Save() error {
	doc := map[string]any{}
	for tag, bucket := range d.sessions {
		records := map[string]any{}
		for key, session := range bucket {
			rec := map[string]any{}
			for field, value := range session.Fields() {
				rec[field] = value
			}
			records[key] = rec
		}
		doc[tag] = map[string]any{"sessions": records}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".auth-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), d.path)
}
