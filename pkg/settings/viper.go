package settings

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys mirror the YAML layout of Settings. client.timeout is in
// seconds and retry.delay_ms in milliseconds, as in NewSettingsFromYAML.
const (
	KeyBackend          = "backend"
	KeyChatModel        = "chat.model"
	KeyChatSystemPrompt = "chat.system_prompt"
	KeyChatTemperature  = "chat.temperature"
	KeyClientBaseURL    = "client.base_url"
	KeyClientToken      = "client.token"
	KeyClientUserAgent  = "client.user_agent"
	KeyClientTimeout    = "client.timeout"
	KeyRetryMaxRetries  = "retry.max_retries"
	KeyRetryDelayMs     = "retry.delay_ms"
	KeyLocalAPIBaseURL  = "local.api_base_url"
	KeyLocalAPIKey      = "local.api_key"
	KeyLocalDatabase    = "local.database"
)

// SetDefaults registers the default values with v.
func SetDefaults(v *viper.Viper) {
	d := NewSettings()
	v.SetDefault(KeyBackend, string(d.Backend))
	v.SetDefault(KeyChatModel, d.Chat.Model)
	v.SetDefault(KeyChatSystemPrompt, d.Chat.SystemPrompt)
	v.SetDefault(KeyChatTemperature, d.Chat.Temperature)
	v.SetDefault(KeyClientBaseURL, d.Client.BaseURL)
	v.SetDefault(KeyClientTimeout, int(*d.Client.Timeout/time.Second))
	v.SetDefault(KeyRetryMaxRetries, d.Retry.MaxRetries)
	v.SetDefault(KeyRetryDelayMs, int(d.Retry.Delay/time.Millisecond))
	v.SetDefault(KeyLocalAPIBaseURL, d.Local.APIBaseURL)
	v.SetDefault(KeyLocalDatabase, d.Local.DatabasePath)
}

// NewSettingsFromViper builds settings from config file, environment and flags
// as merged by v.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	timeout := time.Duration(v.GetInt(KeyClientTimeout)) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Settings{
		Backend: BackendType(v.GetString(KeyBackend)),
		Chat: &ChatSettings{
			Model:        v.GetString(KeyChatModel),
			SystemPrompt: v.GetString(KeyChatSystemPrompt),
			Temperature:  v.GetFloat64(KeyChatTemperature),
		},
		Client: &ClientSettings{
			BaseURL:   v.GetString(KeyClientBaseURL),
			Token:     v.GetString(KeyClientToken),
			UserAgent: v.GetString(KeyClientUserAgent),
			Timeout:   &timeout,
		},
		Retry: &RetrySettings{
			MaxRetries: v.GetInt(KeyRetryMaxRetries),
			Delay:      time.Duration(v.GetInt(KeyRetryDelayMs)) * time.Millisecond,
		},
		Local: &LocalSettings{
			APIBaseURL:   v.GetString(KeyLocalAPIBaseURL),
			APIKey:       v.GetString(KeyLocalAPIKey),
			DatabasePath: v.GetString(KeyLocalDatabase),
		},
	}
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
