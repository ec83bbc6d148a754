package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models bountyline.yml: the per-space role catalog, reward
// defaults, and webhook targets. The engine treats roles as opaque ids;
// the membership lists here only back the role-restricted submitter policy
// and role-targeted reviewers.
type Config struct {
	Space struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"space" json:"space"`
	Roles    map[string]Role `yaml:"roles" json:"roles"`
	Defaults struct {
		ApproveSubmitters         bool `yaml:"approve_submitters" json:"approve_submitters"`
		AllowMultipleApplications bool `yaml:"allow_multiple_applications" json:"allow_multiple_applications"`
		MaxSubmissions            *int `yaml:"max_submissions" json:"max_submissions,omitempty"`
	} `yaml:"defaults" json:"defaults"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type Role struct {
	Description string   `yaml:"description" json:"description,omitempty"`
	Members     []string `yaml:"members" json:"members,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"secret,omitempty"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

const fileName = "bountyline.yml"

// Path returns the config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".bountyline", fileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with bl space config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Space.ID == "" {
		return fmt.Errorf("config.space.id is required")
	}
	for id, role := range c.Roles {
		if id == "" {
			return fmt.Errorf("role with empty id")
		}
		for _, m := range role.Members {
			if m == "" {
				return fmt.Errorf("role %s has empty member id", id)
			}
		}
	}
	if c.Defaults.MaxSubmissions != nil && *c.Defaults.MaxSubmissions < 1 {
		return fmt.Errorf("config.defaults.max_submissions must be at least 1")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// HasRole reports whether a role id is declared in the catalog. An empty
// catalog declares nothing and disables the check.
func (c *Config) HasRole(roleID string) bool {
	if len(c.Roles) == 0 {
		return true
	}
	_, ok := c.Roles[roleID]
	return ok
}

// UserInRoles reports whether userID is a member of any of the roles.
func (c *Config) UserInRoles(userID string, roleIDs []string) bool {
	for _, roleID := range roleIDs {
		role, ok := c.Roles[roleID]
		if !ok {
			continue
		}
		for _, m := range role.Members {
			if m == userID {
				return true
			}
		}
	}
	return false
}

// Default returns a seed config for a new space.
func Default(spaceID string) *Config {
	cfg := &Config{}
	cfg.Space.ID = spaceID
	cfg.Space.Name = spaceID
	cfg.Roles = map[string]Role{}
	return cfg
}
