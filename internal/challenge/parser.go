package challenge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mpataki/figwalk/internal/models"
)

const (
	defaultRuns     = 1
	defaultMaxSteps = 10
	maxRuns         = 10
)

// Challenge is a saved persona task, loaded from YAML:
//
//	name: checkout
//	persona: A teenager on a cracked phone
//	challenge: Buy the cheapest pair of shoes
//	flow: Checkout
//	runs: 3
type Challenge struct {
	Name      string `yaml:"name"`
	Persona   string `yaml:"persona,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
	Challenge string `yaml:"challenge"`
	Flow      string `yaml:"flow,omitempty"`
	File      string `yaml:"file,omitempty"` // figma URL or file key
	Runs      int    `yaml:"runs,omitempty"`
	MaxSteps  int    `yaml:"max_steps,omitempty"`
}

func Parse(path string) (*Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge file: %w", err)
	}
	return ParseBytes(data)
}

func ParseBytes(data []byte) (*Challenge, error) {
	var c Challenge
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, models.InputErrorf("failed to parse challenge YAML: %v", err)
	}

	if c.Runs == 0 {
		c.Runs = defaultRuns
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = defaultMaxSteps
	}
	return &c, nil
}

// LoadAll reads every .yaml/.yml file in dirs. Later directories override
// earlier ones on a name clash; missing directories are skipped.
func LoadAll(dirs []string) (map[string]*Challenge, error) {
	challenges := make(map[string]*Challenge)

	for _, dir := range dirs {
		if err := loadFromDir(dir, challenges); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return challenges, nil
}

func loadFromDir(dir string, challenges map[string]*Challenge) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		c, err := Parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if c.Name == "" {
			c.Name = strings.TrimSuffix(name, ext)
		}
		challenges[c.Name] = c
	}

	return nil
}

func Validate(c *Challenge) error {
	if c.Name == "" {
		return models.InputErrorf("challenge must have a name")
	}
	if strings.TrimSpace(c.Challenge) == "" {
		return models.InputErrorf("challenge %q must describe a task", c.Name)
	}
	if c.Runs < 1 || c.Runs > maxRuns {
		return models.InputErrorf("challenge %q: runs must be between 1 and %d, got %d", c.Name, maxRuns, c.Runs)
	}
	if c.MaxSteps < 1 {
		return models.InputErrorf("challenge %q: max_steps must be positive, got %d", c.Name, c.MaxSteps)
	}
	return nil
}
