package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Database is the console tool's view of which database it will modify.
type Database struct {
	URL string
	// Remote is true when the host is anything other than the local machine.
	Remote bool
}

// LoadDatabase reads db.json from dir when present, then lets DATABASE_URL
// override it. Without either it falls back to DefaultDatabaseURL.
func LoadDatabase(dir string) (Database, error) {
	v := viper.New()
	v.SetConfigName("db")
	v.SetConfigType("json")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetDefault("ConnectionStrings.DefaultConnection", DefaultDatabaseURL)
	_ = v.BindEnv("ConnectionStrings.DefaultConnection", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Database{}, fmt.Errorf("read db.json: %w", err)
		}
	}

	raw := strings.TrimSpace(v.GetString("ConnectionStrings.DefaultConnection"))
	if raw == "" {
		raw = DefaultDatabaseURL
	}
	remote, err := isRemote(raw)
	if err != nil {
		return Database{}, err
	}
	return Database{URL: raw, Remote: remote}, nil
}

func isRemote(raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, fmt.Errorf("parse database url: %w", err)
	}
	host := u.Hostname()
	switch host {
	case "", "localhost":
		return false, nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return false, nil
	}
	return true, nil
}
