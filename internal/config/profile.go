package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	profileDir  = ".csvimport"
	profileFile = "config"
	profileType = "yaml"
)

// ErrProfileNotFound is returned when a named profile is not in the file.
var ErrProfileNotFound = errors.New("profile not found")

// Profiles is the CLI profile file, ~/.csvimport/config.yaml by default.
type Profiles struct {
	DefaultProfile string    `mapstructure:"default_profile" yaml:"default_profile"`
	Profiles       []Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Profile is a named set of connection and import settings for the CLI.
type Profile struct {
	Name      string `mapstructure:"name" yaml:"name"`
	DSN       string `mapstructure:"dsn" yaml:"dsn"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
}

// LoadProfiles reads the profile file from dir, or from ~/.csvimport when
// dir is empty. A missing file yields an empty set, not an error.
func LoadProfiles(dir string) (*Profiles, error) {
	if dir == "" {
		var err error
		if dir, err = profileDirPath(); err != nil {
			return nil, fmt.Errorf("profile dir: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName(profileFile)
	v.SetConfigType(profileType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix("CSVIMPORT")
	v.AutomaticEnv()

	p := &Profiles{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return p, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}
	return p, nil
}

// SaveProfiles writes p to dir (or ~/.csvimport), creating the directory.
func SaveProfiles(dir string, p *Profiles) error {
	if dir == "" {
		var err error
		if dir, err = profileDirPath(); err != nil {
			return fmt.Errorf("profile dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	v := viper.New()
	v.Set("default_profile", p.DefaultProfile)
	profiles := make([]map[string]any, 0, len(p.Profiles))
	for _, pr := range p.Profiles {
		profiles = append(profiles, map[string]any{
			"name":       pr.Name,
			"dsn":        pr.DSN,
			"batch_size": pr.BatchSize,
			"delimiter":  pr.Delimiter,
		})
	}
	v.Set("profiles", profiles)

	return v.WriteConfigAs(filepath.Join(dir, profileFile+"."+profileType))
}

// Lookup returns the named profile. An empty name selects the default
// profile, falling back to the first one.
func (p *Profiles) Lookup(name string) (*Profile, error) {
	if name == "" {
		name = p.DefaultProfile
	}
	if name == "" {
		if len(p.Profiles) == 0 {
			return nil, ErrProfileNotFound
		}
		return &p.Profiles[0], nil
	}

	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			return &p.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

func profileDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, profileDir), nil
}
