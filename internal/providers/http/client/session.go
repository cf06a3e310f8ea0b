package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// DefaultURL is used when nothing else names a server
const DefaultURL = "http://localhost:8000"

// SessionFileName is looked up from the working directory upwards
const SessionFileName = ".oh-session"

// Environment variables consulted by Resolve
const (
	EnvURL         = "OH_API_URL"
	EnvKey         = "OH_API_KEY"
	EnvSessionFile = "OH_SESSION_FILE"
)

// SessionFile is the JSON document saved next to a workspace
type SessionFile struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
}

// Endpoint is a resolved server address and key
type Endpoint struct {
	URL string
	Key string
}

// LoadSessionFile reads a session file
func LoadSessionFile(path string) (SessionFile, error) {
	var sf SessionFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, err
	}
	if err := sonic.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse %s: %w", path, err)
	}
	return sf, nil
}

// FindSessionFile walks from dir to the filesystem root and returns the
// first session file found, or "".
func FindSessionFile(dir string) string {
	for {
		candidate := filepath.Join(dir, SessionFileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Resolver picks the server address and key
type Resolver struct {
	URL         string // --url
	Key         string // --api-key
	SessionFile string // --session-file
	Getenv      func(string) string
	Dir         string
}

// Resolve applies flags, then OH_API_URL/OH_API_KEY. The session file is
// only consulted when no URL was given that way: --session-file, then
// OH_SESSION_FILE, then the nearest .oh-session above Dir. It fills
// whatever is still empty; an unreadable session file is ignored.
func (r Resolver) Resolve() Endpoint {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	ep := Endpoint{
		URL: first(r.URL, getenv(EnvURL)),
		Key: first(r.Key, getenv(EnvKey)),
	}
	if ep.URL == "" {
		path := first(r.SessionFile, getenv(EnvSessionFile))
		if path == "" && r.Dir != "" {
			path = FindSessionFile(r.Dir)
		}
		if path != "" {
			sf, _ := LoadSessionFile(path)
			ep.URL = first(ep.URL, sf.APIURL)
			ep.Key = first(ep.Key, sf.APIKey)
		}
	}
	ep.URL = first(ep.URL, DefaultURL)
	return ep
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
