package classify

import (
	"fmt"
	"log/slog"
	"os"

	"fetchbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// PlatformRule maps host substrings to a platform. Matching is deliberate
// substring containment, not URL validation: any message merely mentioning a
// host qualifies as a request for that platform.
type PlatformRule struct {
	Platform domain.Platform `yaml:"platform"`
	Hosts    []string        `yaml:"hosts"`
}

type rulesFile struct {
	Platforms []PlatformRule `yaml:"platforms"`
}

// DefaultRules are the built-in host rules. Order matters: the first
// matching rule wins.
func DefaultRules() []PlatformRule {
	return []PlatformRule{
		{Platform: domain.PlatformYouTube, Hosts: []string{"youtube.com", "youtu.be"}},
		{Platform: domain.PlatformInstagram, Hosts: []string{"instagram.com"}},
	}
}

// LoadRules reads platform host rules from a YAML file. An empty path or a
// missing file falls back to the built-in defaults.
func LoadRules(path string, logger *slog.Logger) ([]PlatformRule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("platform rules file does not exist, using defaults", "path", path)
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read platform rules: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse platform rules %s: %w", path, err)
	}

	var rules []PlatformRule
	for _, r := range f.Platforms {
		if r.Platform == "" || len(r.Hosts) == 0 {
			logger.Warn("skipping incomplete platform rule", "platform", r.Platform)
			continue
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return DefaultRules(), nil
	}

	logger.Info("loaded platform rules", "path", path, "count", len(rules))
	return rules, nil
}
