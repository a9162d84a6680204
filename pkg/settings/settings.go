package settings

import (
	"io"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel        = "llama-3.3-70b-versatile"
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultTemperature  = 0.7
	DefaultBaseURL      = "http://127.0.0.1:8002"
	DefaultTimeout      = 60 * time.Second
	DefaultMaxRetries   = 2
)

type BackendType string

const (
	BackendRemote BackendType = "remote"
	BackendLocal  BackendType = "local"
	BackendEcho   BackendType = "echo"
)

func (b BackendType) Valid() bool {
	switch b {
	case BackendRemote, BackendLocal, BackendEcho:
		return true
	}
	return false
}

// ChatSettings is passed explicitly into every completion exchange.
type ChatSettings struct {
	Model        string  `yaml:"model,omitempty"`
	SystemPrompt string  `yaml:"system_prompt,omitempty"`
	Temperature  float64 `yaml:"temperature,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// ClientSettings configures the HTTP API used by the remote backends.
type ClientSettings struct {
	BaseURL   string         `yaml:"base_url,omitempty"`
	Token     string         `yaml:"token,omitempty"`
	UserAgent string         `yaml:"user_agent,omitempty"`
	Timeout   *time.Duration `yaml:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := DefaultTimeout
	return &ClientSettings{
		BaseURL: DefaultBaseURL,
		Timeout: &defaultTimeout,
	}
}

// UnmarshalYAML reads timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	aux := &struct {
		Alias   `yaml:",inline"`
		Timeout *int `yaml:"timeout,omitempty"`
	}{
		Alias: Alias(*cs),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*cs = ClientSettings(aux.Alias)
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) MarshalYAML() (interface{}, error) {
	type Alias ClientSettings
	aux := struct {
		Alias   `yaml:",inline"`
		Timeout int `yaml:"timeout,omitempty"`
	}{
		Alias: Alias(*cs),
	}
	if cs.Timeout != nil {
		aux.Timeout = int(*cs.Timeout / time.Second)
	}
	return aux, nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// RetrySettings bounds the number of retries after a failed completion attempt.
type RetrySettings struct {
	MaxRetries int           `yaml:"max_retries"`
	Delay      time.Duration `yaml:"-"`
}

func NewRetrySettings() *RetrySettings {
	return &RetrySettings{MaxRetries: DefaultMaxRetries}
}

// UnmarshalYAML reads delay_ms as a number of milliseconds.
func (rs *RetrySettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias RetrySettings
	aux := &struct {
		Alias   `yaml:",inline"`
		DelayMs *int `yaml:"delay_ms,omitempty"`
	}{
		Alias: Alias(*rs),
	}
	if err := value.Decode(aux); err != nil {
		return err
	}
	*rs = RetrySettings(aux.Alias)
	if aux.DelayMs != nil {
		rs.Delay = time.Duration(*aux.DelayMs) * time.Millisecond
	}
	return nil
}

func (rs *RetrySettings) MarshalYAML() (interface{}, error) {
	type Alias RetrySettings
	return struct {
		Alias   `yaml:",inline"`
		DelayMs int `yaml:"delay_ms,omitempty"`
	}{
		Alias:   Alias(*rs),
		DelayMs: int(rs.Delay / time.Millisecond),
	}, nil
}

// LocalSettings configures the local backend, which talks to an
// OpenAI-compatible API and keeps history in SQLite.
type LocalSettings struct {
	APIBaseURL   string `yaml:"api_base_url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	DatabasePath string `yaml:"database,omitempty"`
}

func NewLocalSettings() *LocalSettings {
	return &LocalSettings{
		APIBaseURL:   "https://api.groq.com/openai/v1",
		DatabasePath: "branchat.db",
	}
}

type Settings struct {
	Backend BackendType     `yaml:"backend,omitempty"`
	Chat    *ChatSettings   `yaml:"chat,omitempty"`
	Client  *ClientSettings `yaml:"client,omitempty"`
	Retry   *RetrySettings  `yaml:"retry,omitempty"`
	Local   *LocalSettings  `yaml:"local,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Backend: BackendRemote,
		Chat:    NewChatSettings(),
		Client:  NewClientSettings(),
		Retry:   NewRetrySettings(),
		Local:   NewLocalSettings(),
	}
}

// NewSettingsFromYAML overlays the YAML document read from r onto the defaults.
func NewSettingsFromYAML(r io.Reader) (*Settings, error) {
	s := NewSettings()
	if err := yaml.NewDecoder(r).Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) fillDefaults() {
	d := NewSettings()
	if s.Backend == "" {
		s.Backend = d.Backend
	}
	if s.Chat == nil {
		s.Chat = d.Chat
	}
	if s.Client == nil {
		s.Client = d.Client
	}
	if s.Client.Timeout == nil {
		s.Client.Timeout = d.Client.Timeout
	}
	if s.Retry == nil {
		s.Retry = d.Retry
	}
	if s.Local == nil {
		s.Local = d.Local
	}
}

func (s *Settings) Validate() error {
	if !s.Backend.Valid() {
		return errors.Errorf("unknown backend %q", s.Backend)
	}
	if s.Chat == nil || s.Chat.Model == "" {
		return errors.New("chat model is required")
	}
	if s.Retry != nil && s.Retry.MaxRetries < 0 {
		return errors.Errorf("max retries must not be negative, got %d", s.Retry.MaxRetries)
	}
	return nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
