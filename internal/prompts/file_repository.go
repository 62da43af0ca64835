package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileRepository stores profiles in a single JSON file (the supplier_prompts.json
// layout) or YAML file when the path ends in .yaml or .yml.
type FileRepository struct {
	path string
}

// NewFileRepository creates a file-backed repository. The file is created on first Save.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file path.
func (r *FileRepository) Path() string { return r.path }

// fileProfile mirrors Profile on disk; a missing "active" means active.
type fileProfile struct {
	Name         string `json:"name" yaml:"name"`
	Prompt       string `json:"prompt" yaml:"prompt"`
	Active       *bool  `json:"active,omitempty" yaml:"active,omitempty"`
	Created      string `json:"created,omitempty" yaml:"created,omitempty"`
	LastModified string `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
}

func (r *FileRepository) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(r.path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the file. A missing file is an empty store.
func (r *FileRepository) Load(ctx context.Context) (map[string]Profile, error) {
	const op = "FileRepository.Load"

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw := make(map[string]fileProfile)
	if len(strings.TrimSpace(string(data))) > 0 {
		if r.isYAML() {
			err = yaml.Unmarshal(data, &raw)
		} else {
			err = json.Unmarshal(data, &raw)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse %s: %w", op, r.path, err)
		}
	}

	profiles := make(map[string]Profile, len(raw))
	for key, fp := range raw {
		active := true
		if fp.Active != nil {
			active = *fp.Active
		}
		profiles[key] = Profile{
			Key:          key,
			Name:         fp.Name,
			Prompt:       fp.Prompt,
			Active:       active,
			Created:      fp.Created,
			LastModified: fp.LastModified,
		}
	}
	return profiles, nil
}

// Save writes the file through a temp file and rename.
func (r *FileRepository) Save(ctx context.Context, profiles map[string]Profile) error {
	const op = "FileRepository.Save"

	raw := make(map[string]fileProfile, len(profiles))
	for key, p := range profiles {
		active := p.Active
		raw[key] = fileProfile{
			Name:         p.Name,
			Prompt:       p.Prompt,
			Active:       &active,
			Created:      p.Created,
			LastModified: p.LastModified,
		}
	}

	var data []byte
	var err error
	if r.isYAML() {
		data, err = yaml.Marshal(raw)
	} else {
		data, err = json.MarshalIndent(raw, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmp, err := os.CreateTemp(dir, ".prompts-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
