package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPrefsFile is the prefs file name under the user's home directory.
const DefaultPrefsFile = ".connect4.yaml"

// Prefs are the defaults offered at the credentials prompt.
type Prefs struct {
	Username string `yaml:"username,omitempty"`
	Server   string `yaml:"server,omitempty"`

	path string
}

// DefaultPrefsPath returns ~/.connect4.yaml, or the bare file name when the
// home directory is unknown.
func DefaultPrefsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultPrefsFile
	}
	return filepath.Join(home, DefaultPrefsFile)
}

// LoadPrefs reads prefs from path.
//
// Postcondition: A missing or empty file yields empty Prefs bound to path;
// malformed YAML is an error.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading prefs %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing prefs %s: %w", path, err)
	}
	return p, nil
}

// Path returns the file the prefs are saved to. Empty means in-memory only.
func (p *Prefs) Path() string { return p.path }

// Save writes the prefs back to their file. In-memory prefs are not saved.
func (p *Prefs) Save() error {
	if p.path == "" {
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding prefs: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("writing prefs %s: %w", p.path, err)
	}
	return nil
}
