// Package profiles keeps named docbridge configurations in one directory so
// a store and its endpoints can be selected with --profile.
package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/docbridge/internal/config"
)

const DefaultDir = "profiles"

var fileNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

type Profile struct {
	Name     string
	Path     string
	Store    string
	Source   string
	Target   string
	Modified time.Time
}

type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	return &Manager{dir: dir}
}

func (m *Manager) Directory() string {
	return m.dir
}

// List returns the loadable profiles sorted by name. Files that fail to load
// are left out.
func (m *Manager) List() ([]Profile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		cfg, err := config.LoadConfig(path)
		if err != nil {
			continue
		}

		modified := time.Time{}
		if info, err := entry.Info(); err == nil {
			modified = info.ModTime()
		}
		profiles = append(profiles, Profile{
			Name:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Path:     path,
			Store:    cfg.Store.Path,
			Source:   cfg.Import.Source,
			Target:   cfg.Export.Target,
			Modified: modified,
		})
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Save writes cfg under alias. Secrets are not written: the encryption key
// and the MongoDB password are expected from the environment.
func (m *Manager) Save(alias string, cfg *config.Config) (Profile, error) {
	if cfg == nil {
		return Profile{}, fmt.Errorf("config cannot be nil")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Profile{}, err
	}

	base := strings.TrimSpace(alias)
	if base == "" {
		base = fmt.Sprintf("%s-%s", strings.TrimSuffix(filepath.Base(cfg.Store.Path), filepath.Ext(cfg.Store.Path)), time.Now().Format("20060102_150405"))
	}
	path := filepath.Join(m.dir, sanitizeName(base)+".yaml")

	stripped := *cfg
	stripped.Store.EncryptionKey = ""
	stripped.Mongo.Password = ""

	data, err := yaml.Marshal(&stripped)
	if err != nil {
		return Profile{}, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Profile{}, err
	}

	return Profile{
		Name:     strings.TrimSuffix(filepath.Base(path), ".yaml"),
		Path:     path,
		Store:    cfg.Store.Path,
		Source:   cfg.Import.Source,
		Target:   cfg.Export.Target,
		Modified: time.Now(),
	}, nil
}

// Load reads a profile by alias or by file path.
func (m *Manager) Load(alias string) (*config.Config, error) {
	path, err := m.resolve(alias)
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(path)
}

func (m *Manager) Delete(alias string) error {
	path, err := m.resolve(alias)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("profile not found: %s", alias)
	}
	return os.Remove(path)
}

func (m *Manager) resolve(alias string) (string, error) {
	if strings.TrimSpace(alias) == "" {
		return "", fmt.Errorf("profile alias cannot be empty")
	}
	if strings.ContainsRune(alias, os.PathSeparator) {
		return alias, nil
	}
	if isYAML(alias) {
		return filepath.Join(m.dir, alias), nil
	}
	return filepath.Join(m.dir, alias+".yaml"), nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func sanitizeName(input string) string {
	cleaned := fileNameSanitizer.ReplaceAllString(input, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "profile"
	}
	return cleaned
}
