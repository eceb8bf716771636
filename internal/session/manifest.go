package session

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"cab/internal/config"
	"cab/internal/errors"
)

const manifestName = "analysis.toml"

// Manifest is an optional per-repo analysis preset at .cab/analysis.toml.
// It lets a repo pin its goal and batching choices so `cab session create`
// needs no flags.
type Manifest struct {
	Goal              string   `toml:"goal"`
	ExtraGoals        []string `toml:"extra_goals,omitempty"`
	Strategy          string   `toml:"strategy"`
	Extensions        []string `toml:"extensions,omitempty"`
	MaxTokensPerBatch int      `toml:"max_tokens_per_batch,omitempty"`
}

// LoadManifest reads the repo's manifest. A missing file returns (nil, nil).
func LoadManifest(repoRoot string) (*Manifest, error) {
	path := filepath.Join(repoRoot, config.EngineDir, manifestName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.Internal, "failed to read analysis manifest", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.Corrupt, "analysis manifest is not valid TOML", err)
	}
	return &m, nil
}

// SaveManifest writes the repo's manifest.
func SaveManifest(repoRoot string, m *Manifest) error {
	dir := filepath.Join(repoRoot, config.EngineDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.Internal, "failed to create engine directory", err)
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return errors.Wrap(errors.Internal, "failed to serialize analysis manifest", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0644); err != nil {
		return errors.Wrap(errors.Internal, "failed to write analysis manifest", err)
	}
	return nil
}
