package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mpataki/figwalk/internal/models"
)

const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultPerMinute = 20
	DefaultPerDay    = 1000
	DefaultMaxSteps  = 10
)

type Config struct {
	DataDir             string
	DBPath              string
	LogPath             string
	UserChallengeDir    string
	ProjectChallengeDir string

	FigmaToken   string
	GeminiAPIKey string
	Model        string
	PerMinute    int
	PerDay       int
	MaxSteps     int
}

// LoadEnv reads KEY=value pairs from the given files, or from .env in the
// working directory when none are given. Variables already set win.
func LoadEnv(files ...string) error {
	return godotenv.Load(files...)
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("FIGWALK_DATA_DIR", filepath.Join(homeDir, ".figwalk"))

	c := &Config{
		DataDir:             dataDir,
		DBPath:              filepath.Join(dataDir, "figwalk.db"),
		LogPath:             filepath.Join(dataDir, "figwalk.log"),
		UserChallengeDir:    filepath.Join(dataDir, "challenges"),
		ProjectChallengeDir: ".figwalk/challenges",
		FigmaToken:          os.Getenv("FIGMA_TOKEN"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		Model:               getEnv("FIGWALK_MODEL", DefaultModel),
	}

	if c.PerMinute, err = getInt("FIGWALK_RPM", DefaultPerMinute); err != nil {
		return nil, err
	}
	if c.PerDay, err = getInt("FIGWALK_RPD", DefaultPerDay); err != nil {
		return nil, err
	}
	if c.MaxSteps, err = getInt("FIGWALK_MAX_STEPS", DefaultMaxSteps); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.UserChallengeDir, 0755); err != nil {
		return err
	}
	return nil
}

func (c *Config) WorkspacesDir() string {
	return filepath.Join(c.DataDir, "workspaces")
}

// ChallengeDirs lists where challenge files are looked up, user-wide first.
func (c *Config) ChallengeDirs() []string {
	return []string{c.UserChallengeDir, c.ProjectChallengeDir}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, models.InputErrorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

// RequireFigma reports a missing Figma token.
func (c *Config) RequireFigma() error {
	if c.FigmaToken == "" {
		return fmt.Errorf("FIGMA_TOKEN is not set")
	}
	return nil
}
