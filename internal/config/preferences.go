package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// PreferencesFile is the on-disk shape of a preference profile.
//
//	kind: movie
//	count: 5
//	preferences:
//	  genres: [Sci-Fi, Drama]
//	  languages: [English]
//	exclude:
//	  - {title: Dune, year: 2021}
type PreferencesFile struct {
	Kind        string                 `yaml:"kind"`
	Count       int                    `yaml:"count" validate:"omitempty,min=1,max=10"`
	Preferences domain.UserPreferences `yaml:"preferences"`
	Exclude     []domain.TitleRef      `yaml:"exclude" validate:"dive"`
}

// LoadPreferencesFile reads and validates a YAML preference profile.
func LoadPreferencesFile(path string) (PreferencesFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return PreferencesFile{}, fmt.Errorf("op=config.LoadPreferencesFile: %w", err)
	}
	// #nosec G304 -- the path is supplied by the local user
	content, err := os.ReadFile(absPath)
	if err != nil {
		return PreferencesFile{}, fmt.Errorf("op=config.LoadPreferencesFile: %w", err)
	}
	return ParsePreferences(content)
}

// ParsePreferences decodes a YAML preference profile. Kind defaults to movie.
func ParsePreferences(content []byte) (PreferencesFile, error) {
	var pf PreferencesFile
	if err := yaml.Unmarshal(content, &pf); err != nil {
		return PreferencesFile{}, fmt.Errorf("op=config.ParsePreferences: %w: %v", domain.ErrInvalidArgument, err)
	}
	if pf.Kind == "" {
		pf.Kind = string(domain.KindMovie)
	}
	kind, err := domain.ParseKind(pf.Kind)
	if err != nil {
		return PreferencesFile{}, fmt.Errorf("op=config.ParsePreferences: %w", err)
	}
	pf.Kind = string(kind)
	if err := Validator().Struct(pf); err != nil {
		return PreferencesFile{}, fmt.Errorf("op=config.ParsePreferences: %w: %v", domain.ErrInvalidArgument, err)
	}
	pf.Preferences = pf.Preferences.Normalize()
	return pf, nil
}
