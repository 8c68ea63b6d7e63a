package config

import (
	"os"

	"go.yaml.in/yaml/v3"
)

// projectKeywords is the planner section of the .orchid.yaml project file.
// Role keyword overrides live here rather than in viper because they are
// nested lists the planner consumes verbatim.
type projectKeywords struct {
	Planner struct {
		RoleKeywords map[string][]string `yaml:"role_keywords"`
	} `yaml:"planner"`
}

// LoadRoleKeywords reads project-configured role keywords from .orchid.yaml,
// searching the current directory and its parents. A missing file yields an
// empty map; a malformed file is an error.
func LoadRoleKeywords() (map[string][]string, error) {
	path := findProjectConfig()
	if path == "" {
		return map[string][]string{}, nil
	}
	return loadRoleKeywordsFromPath(path)
}

func loadRoleKeywordsFromPath(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg projectKeywords
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Planner.RoleKeywords == nil {
		return map[string][]string{}, nil
	}
	return cfg.Planner.RoleKeywords, nil
}
