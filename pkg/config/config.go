package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

const (
	xdgAppName = "hermes-sync"
	configFile = "config.yaml"
)

// Config holds everything the sync daemon needs that is not a secret.
type Config struct {
	// StorePath is the SQLite database file. Empty means
	// <config dir>/hermes.db.
	StorePath string `yaml:"store_path"`

	// TaskList is the remote task list to reconcile against, matched
	// tolerantly (case, hyphens, plural "s").
	TaskList string `yaml:"task_list"`

	// CalendarID is the remote calendar to mirror.
	CalendarID string `yaml:"calendar_id"`

	// MailQuery selects candidate transfer notifications.
	MailQuery string `yaml:"mail_query"`

	// SyncInterval is the scheduled full-sync period in watch mode.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// PollInterval is how often watch mode checks the run document for
	// a manual request.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CalendarWindowPast / CalendarWindowFuture bound the mirror window
	// in days around the current instant.
	CalendarWindowPast   int `yaml:"calendar_window_past"`
	CalendarWindowFuture int `yaml:"calendar_window_future"`

	// IncomeKeywords classify a transfer notification as incoming when
	// any of them appears in the subject or snippet.
	IncomeKeywords []string `yaml:"income_keywords"`

	// Categories are the ordered classifier rules. The store may carry
	// a dynamic set that overrides these.
	Categories []model.CategoryRule `yaml:"categories"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TaskList:             "General tasks",
		CalendarID:           "primary",
		MailQuery:            `subject:(Pix received OR Pix sent OR "Pix transfer" OR "Pix recebido" OR "Pix realizado" OR "Pix enviado")`,
		SyncInterval:         30 * time.Minute,
		PollInterval:         5 * time.Second,
		CalendarWindowPast:   7,
		CalendarWindowFuture: 30,
		IncomeKeywords:       []string{"received", "recebido", "recebeu", "recebida"},
		Categories: []model.CategoryRule{
			{
				Name:             "PROCUREMENT",
				CountsTowardGoal: true,
				Keywords: []string{
					"tender", "bid", "procurement", "contract",
					"purchase", "acquisition", "waiver", "proceeding",
				},
			},
			{
				Name:             "ASSISTANCE",
				CountsTowardGoal: true,
				Keywords: []string{
					"assistance", "student", "scholarship", "stipend", "aid",
				},
			},
		},
	}
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// Path returns the configuration file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file, falling back to defaults when it does not
// exist. Fields left empty in the file keep their default values.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a specific config file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

// DefaultStorePath resolves the database location when StorePath is empty.
func (c *Config) DefaultStorePath() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hermes.db"), nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.TaskList == "" {
		c.TaskList = def.TaskList
	}
	if c.CalendarID == "" {
		c.CalendarID = def.CalendarID
	}
	if c.MailQuery == "" {
		c.MailQuery = def.MailQuery
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = def.SyncInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.CalendarWindowPast <= 0 {
		c.CalendarWindowPast = def.CalendarWindowPast
	}
	if c.CalendarWindowFuture <= 0 {
		c.CalendarWindowFuture = def.CalendarWindowFuture
	}
	if len(c.IncomeKeywords) == 0 {
		c.IncomeKeywords = def.IncomeKeywords
	}
	if len(c.Categories) == 0 {
		c.Categories = def.Categories
	}
}
