package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
space:
  id: space-1
  name: Demo space
roles:
  reviewers:
    description: Submission reviewers
    members: [rev-1, rev-2]
  builders:
    members: [user-a]
defaults:
  approve_submitters: true
  max_submissions: 3
webhooks:
  - url: https://example.test/hook
    events: [reward.created]
`

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "space-1", cfg.Space.ID)
	assert.Equal(t, "Demo space", cfg.Space.Name)
	assert.Len(t, cfg.Roles, 2)
	assert.True(t, cfg.Defaults.ApproveSubmitters)
	require.NotNil(t, cfg.Defaults.MaxSubmissions)
	assert.Equal(t, 3, *cfg.Defaults.MaxSubmissions)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, "https://example.test/hook", cfg.Webhooks[0].URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "valid",
		},
		{
			name:    "missing space id",
			mutate:  func(c *Config) { c.Space.ID = "" },
			wantErr: "config.space.id is required",
		},
		{
			name:    "empty role member",
			mutate:  func(c *Config) { c.Roles["reviewers"] = Role{Members: []string{""}} },
			wantErr: "empty member id",
		},
		{
			name: "cap below one",
			mutate: func(c *Config) {
				zero := 0
				c.Defaults.MaxSubmissions = &zero
			},
			wantErr: "must be at least 1",
		},
		{
			name:    "webhook without url",
			mutate:  func(c *Config) { c.Webhooks = []WebhookConfig{{}} },
			wantErr: "empty url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromYAML([]byte(sampleYAML))
			require.NoError(t, err)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoleChecks(t *testing.T) {
	cfg, err := FromYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.True(t, cfg.HasRole("reviewers"))
	assert.False(t, cfg.HasRole("ghosts"))
	// an empty catalog disables the declaration check
	assert.True(t, Default("x").HasRole("anything"))

	assert.True(t, cfg.UserInRoles("rev-2", []string{"reviewers"}))
	assert.True(t, cfg.UserInRoles("user-a", []string{"ghosts", "builders"}))
	assert.False(t, cfg.UserInRoles("user-a", []string{"reviewers"}))
	assert.False(t, cfg.UserInRoles("user-a", nil))
}
