package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// sessionFile persists the API session cookies between invocations.
type sessionFile struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username,omitempty"`
	Cookies  []savedCookie `yaml:"cookies"`
}

type savedCookie struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// loadSession returns the cookies saved for baseURL. A missing file, or one
// written for another API, yields no cookies.
func loadSession(path, baseURL string) (sessionFile, []*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return sessionFile{}, nil, nil
	}
	if err != nil {
		return sessionFile{}, nil, fmt.Errorf("read session: %w", err)
	}
	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sessionFile{}, nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if sf.BaseURL != baseURL {
		return sessionFile{}, nil, nil
	}
	cookies := make([]*http.Cookie, 0, len(sf.Cookies))
	for _, c := range sf.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return sf, cookies, nil
}

// saveSession writes the cookies with owner-only permissions. An empty cookie
// set removes the file.
func saveSession(path string, sf sessionFile, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	sf.Cookies = sf.Cookies[:0]
	for _, c := range cookies {
		sf.Cookies = append(sf.Cookies, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
