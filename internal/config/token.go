package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken means no usable access token is stored.
var ErrNoToken = errors.New("no valid token (run `setlog token set`)")

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Dir is the per-user settings directory.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "setlog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "setlog")
}

func tokenPath() string { return filepath.Join(Dir(), "token.json") }

// SaveToken stores tok with the expiry read from its exp claim. The signature is
// not checked here; the server does that.
func SaveToken(tok string) (time.Time, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return time.Time{}, errors.New("empty token")
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp := time.Now().Add(15 * time.Minute)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return time.Time{}, err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return exp, enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

// LoadToken returns the stored token, or ErrNoToken when missing or expired.
func LoadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", ErrNoToken
	}
	return tf.AccessToken, nil
}

// ClearToken removes the stored token.
func ClearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
