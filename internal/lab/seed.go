package lab

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Labs []seedLab `yaml:"labs"`
}

type seedLab struct {
	ID               string     `yaml:"id"`
	Name             string     `yaml:"name"`
	Capacity         int        `yaml:"capacity"`
	Status           string     `yaml:"status"`
	MaintenanceUntil *time.Time `yaml:"maintenance_until"`
}

// LoadSeed reads a YAML lab catalogue from path.
func LoadSeed(path string) ([]*Lab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc seedFile
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode lab seed %s: %w", path, err)
	}

	labs := make([]*Lab, 0, len(doc.Labs))
	for i, s := range doc.Labs {
		status := Status(strings.ToUpper(s.Status))
		if status == "" {
			status = StatusActive
		}
		l := &Lab{
			ID:               s.ID,
			Name:             strings.TrimSpace(s.Name),
			Capacity:         s.Capacity,
			Status:           status,
			MaintenanceUntil: s.MaintenanceUntil,
		}
		if err := validate(l); err != nil {
			return nil, fmt.Errorf("lab seed entry %d: %w", i, err)
		}
		labs = append(labs, l)
	}
	return labs, nil
}

// Seed inserts labs into repo, skipping entries whose id already exists.
func Seed(ctx context.Context, repo Repository, labs []*Lab) (int, error) {
	created := 0
	for _, l := range labs {
		if l.ID != "" {
			if _, err := repo.GetByID(ctx, l.ID); err == nil {
				continue
			}
		}
		if err := repo.Create(ctx, l); err != nil {
			return created, fmt.Errorf("seed lab %q: %w", l.Name, err)
		}
		created++
	}
	return created, nil
}

func validate(l *Lab) error {
	if l.Name == "" {
		return ErrEmptyName
	}
	if l.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if !l.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
