package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// TargetsConfig holds all named targets and tracks which one is active.
type TargetsConfig struct {
	Active  string            `toml:"active"`
	Targets map[string]Target `toml:"targets"`
}

// Target is a named database profile.
type Target struct {
	DatabaseURL string `toml:"database_url"`
	Driver      string `toml:"driver,omitempty"`
	NATSURL     string `toml:"nats_url,omitempty"`
}

func targetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "grapher")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "targets.toml"), nil
}

func loadTargetsConfig() (TargetsConfig, error) {
	path, err := targetConfigPath()
	if err != nil {
		return TargetsConfig{}, err
	}
	var tc TargetsConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		if os.IsNotExist(err) {
			return TargetsConfig{Targets: map[string]Target{}}, nil
		}
		return TargetsConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	if tc.Targets == nil {
		tc.Targets = map[string]Target{}
	}
	return tc, nil
}

func saveTargetsConfig(tc TargetsConfig) error {
	path, err := targetConfigPath()
	if err != nil {
		return err
	}
	return writeTargetsFile(path, tc)
}

func writeTargetsFile(path string, tc TargetsConfig) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return toml.NewEncoder(f).Encode(tc)
}

// selectedTarget returns the target named by --target, or the active one.
// ok is false when neither is set.
func selectedTarget() (t Target, name string, ok bool, err error) {
	tc, err := loadTargetsConfig()
	if err != nil {
		return Target{}, "", false, err
	}
	name = tc.Active
	if targetName != "" {
		name = targetName
	}
	if name == "" {
		return Target{}, "", false, nil
	}
	t, found := tc.Targets[name]
	if !found {
		return Target{}, name, false, fmt.Errorf("target %q not found", name)
	}
	return t, name, true, nil
}

// redactURL hides the password of a database URL. Plain paths are returned
// unchanged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
