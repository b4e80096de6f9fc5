// Package collect implements the pull-based remote collector: it fetches
// only new bytes from each configured remote file over a narrow
// remote-execution channel and mirrors them locally.
package collect

import (
	"errors"
	"fmt"
	"os"

	"github.com/vigilproject/vigil/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultSSHPort is used when a source omits its port.
const DefaultSSHPort = 22

type sourcesFile struct {
	Sources []model.Source `yaml:"sources"`
}

// LoadSources reads the YAML sources file at path. An empty source list is
// an error: the collector has nothing to do and refuses to start.
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("collect: read sources file: %w", err)
	}

	var cfg sourcesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("collect: parse sources file: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("collect: no sources configured")
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Name == "" || src.Host == "" || src.User == "" || src.RemotePath == "" {
			return nil, fmt.Errorf("collect: source %d: name, host, user, and remote_path are required", i)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("collect: duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if src.Port == 0 {
			src.Port = DefaultSSHPort
		}
	}
	return cfg.Sources, nil
}
