package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		DBSSLMode:                "disable",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		ImageMaxUploadSizeMB:     10,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		VotePolicy:               VotePolicyToggle,
		EmailProvider:            "console",
		StorageProvider:          "local",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default jwt secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }},
		{"default db password", func(c *Config) { c.DBPassword = "password" }},
		{"empty db password", func(c *Config) { c.DBPassword = "" }},
		{"missing redis", func(c *Config) { c.RedisURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = "production"
			c.DBSSLMode = "require"
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_ValidateProviders(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"overwrite vote policy", func(c *Config) { c.VotePolicy = VotePolicyOverwrite }, false},
		{"unknown vote policy", func(c *Config) { c.VotePolicy = "sticky" }, true},
		{"sendgrid without key", func(c *Config) { c.EmailProvider = "sendgrid" }, true},
		{"sendgrid with key", func(c *Config) {
			c.EmailProvider = "sendgrid"
			c.SendGridAPIKey = "SG.key"
		}, false},
		{"unknown email provider", func(c *Config) { c.EmailProvider = "carrier-pigeon" }, true},
		{"cloudinary without credentials", func(c *Config) { c.StorageProvider = "cloudinary" }, true},
		{"cloudinary with credentials", func(c *Config) {
			c.StorageProvider = "cloudinary"
			c.CloudinaryCloudName = "demo"
			c.CloudinaryAPIKey = "key"
			c.CloudinaryAPISecret = "secret"
		}, false},
		{"negative upload size", func(c *Config) { c.ImageMaxUploadSizeMB = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_MaxUploadBytes(t *testing.T) {
	c := validConfig()
	assert.Equal(t, int64(10<<20), c.MaxUploadBytes())

	c.ImageMaxUploadSizeMB = 0
	assert.Equal(t, int64(10<<20), c.MaxUploadBytes())

	c.ImageMaxUploadSizeMB = 2
	assert.Equal(t, int64(2<<20), c.MaxUploadBytes())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, VotePolicyToggle, c.VotePolicy)
	assert.True(t, c.ModerationAllowReopen)
	assert.False(t, c.ModerationModeratorsCanReview)
	assert.Equal(t, "console", c.EmailProvider)
	assert.Equal(t, "local", c.StorageProvider)
	assert.Equal(t, 1024, c.BroadcastQueueSize)
	assert.Equal(t, 25, c.DBMaxOpenConns)
}

func TestLoadConfig_EnvOverridesVotePolicy(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("VOTE_POLICY")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("VOTE_POLICY", "Overwrite")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, VotePolicyOverwrite, c.VotePolicy)
}
