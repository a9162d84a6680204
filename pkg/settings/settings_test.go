package settings

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings()

	assert.Equal(t, BackendRemote, s.Backend)
	assert.Equal(t, DefaultModel, s.Chat.Model)
	assert.Equal(t, DefaultSystemPrompt, s.Chat.SystemPrompt)
	assert.Equal(t, DefaultTimeout, *s.Client.Timeout)
	assert.Equal(t, 2, s.Retry.MaxRetries)
	assert.Zero(t, s.Retry.Delay)
	require.NoError(t, s.Validate())
}

const settingsDoc = `
backend: local
chat:
  model: gpt-4o-mini
  system_prompt: Be terse.
client:
  base_url: http://example.test
  token: secret
  timeout: 5
retry:
  max_retries: 4
  delay_ms: 250
local:
  database: /tmp/history.db
`

func TestNewSettingsFromYAML(t *testing.T) {
	s, err := NewSettingsFromYAML(strings.NewReader(settingsDoc))
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, s.Backend)
	assert.Equal(t, "gpt-4o-mini", s.Chat.Model)
	assert.Equal(t, "Be terse.", s.Chat.SystemPrompt)
	assert.Equal(t, DefaultTemperature, s.Chat.Temperature)
	assert.Equal(t, "http://example.test", s.Client.BaseURL)
	assert.Equal(t, "secret", s.Client.Token)
	assert.Equal(t, 5*time.Second, *s.Client.Timeout)
	assert.Equal(t, 4, s.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, s.Retry.Delay)
	assert.Equal(t, "/tmp/history.db", s.Local.DatabasePath)
	assert.Equal(t, "https://api.groq.com/openai/v1", s.Local.APIBaseURL)
}

func TestNewSettingsFromEmptyYAML(t *testing.T) {
	s, err := NewSettingsFromYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, NewSettings().Chat, s.Chat)
}

func TestNewSettingsFromYAMLRejectsUnknownBackend(t *testing.T) {
	_, err := NewSettingsFromYAML(strings.NewReader("backend: carrier-pigeon\n"))
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSettings()
	c := s.Clone()
	c.Chat.Model = "other"
	*c.Client.Timeout = time.Second

	assert.Equal(t, DefaultModel, s.Chat.Model)
	assert.Equal(t, DefaultTimeout, *s.Client.Timeout)
}

func TestNewSettingsFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyChatModel, "mixtral")
	v.Set(KeyRetryMaxRetries, 0)
	v.Set(KeyClientTimeout, 3)

	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "mixtral", s.Chat.Model)
	assert.Equal(t, DefaultSystemPrompt, s.Chat.SystemPrompt)
	assert.Equal(t, 0, s.Retry.MaxRetries)
	assert.Equal(t, 3*time.Second, *s.Client.Timeout)
	assert.Equal(t, DefaultBaseURL, s.Client.BaseURL)
}

func TestNewSettingsFromViperRejectsNegativeRetries(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyRetryMaxRetries, -1)

	_, err := NewSettingsFromViper(v)
	require.Error(t, err)
}

func TestViperReadsTheSameDocumentAsYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(settingsDoc)))

	fromViper, err := NewSettingsFromViper(v)
	require.NoError(t, err)
	fromYAML, err := NewSettingsFromYAML(strings.NewReader(settingsDoc))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, *fromViper.Client.Timeout)
	assert.Equal(t, 250*time.Millisecond, fromViper.Retry.Delay)
	assert.Equal(t, fromYAML, fromViper)
}

func TestMarshalledSettingsReadBack(t *testing.T) {
	s, err := NewSettingsFromYAML(strings.NewReader(settingsDoc))
	require.NoError(t, err)

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "timeout: 5\n")
	assert.Contains(t, string(out), "delay_ms: 250\n")

	back, err := NewSettingsFromYAML(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, s, back)
}
