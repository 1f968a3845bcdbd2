package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials are the secrets kept out of the main config file.
type Credentials struct {
	Server        string
	ClientID      string
	ClientSecret  string
	AccessToken   string
	TelegramToken string
}

// LoadCredentials reads a dotenv file. Process environment variables take
// precedence over the file; an empty path reads the environment only.
func LoadCredentials(path string) (Credentials, error) {
	env := map[string]string{}
	if p := strings.TrimSpace(path); p != "" {
		m, err := godotenv.Read(p)
		if err != nil {
			return Credentials{}, fmt.Errorf("credentials %s: %w", p, err)
		}
		env = m
	}
	get := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(env[key])
	}
	c := Credentials{
		Server:        strings.TrimRight(get("MASTODON_SERVER"), "/"),
		ClientID:      get("MASTODON_CLIENT_ID"),
		ClientSecret:  get("MASTODON_CLIENT_SECRET"),
		AccessToken:   get("MASTODON_ACCESS_TOKEN"),
		TelegramToken: get("TELEGRAM_TOKEN"),
	}
	if c.Server == "" || c.AccessToken == "" {
		return Credentials{}, fmt.Errorf("credentials: MASTODON_SERVER and MASTODON_ACCESS_TOKEN are required")
	}
	return c, nil
}
