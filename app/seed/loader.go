package seed

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Sources     []SourceDef     `yaml:"sources"`
	DarkSources []DarkSourceDef `yaml:"dark_sources"`
}

// LoadDir reads additional source definitions from YAML files in dir. A
// missing directory is not an error; the built-in tier-1 set stands alone.
func LoadDir(dir string) ([]SourceDef, []DarkSourceDef, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	var sources []SourceDef
	var darkSources []DarkSourceDef
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		var parsed seedFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		if err := validate(parsed); err != nil {
			return nil, nil, fmt.Errorf("invalid seed file %s: %w", file, err)
		}

		sources = append(sources, parsed.Sources...)
		darkSources = append(darkSources, parsed.DarkSources...)
	}

	return sources, darkSources, nil
}

func validate(parsed seedFile) error {
	for i, source := range parsed.Sources {
		if source.Name == "" || source.Slug == "" {
			return fmt.Errorf("source at index %d needs both name and slug", i)
		}
		for j, feed := range source.Feeds {
			if feed.Name == "" || feed.URL == "" {
				return fmt.Errorf("feed at index %d of source %q needs both name and url", j, source.Slug)
			}
		}
	}
	for i, source := range parsed.DarkSources {
		if source.Name == "" || source.Slug == "" || source.URL == "" {
			return fmt.Errorf("dark source at index %d needs name, slug and url", i)
		}
	}
	return nil
}
