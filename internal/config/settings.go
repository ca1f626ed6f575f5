package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
	toml2 "github.com/pelletier/go-toml/v2"
)

const EnvPrefix = "DEVENV_"

type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxyHTTPS  ProxyType = "https"
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
)

func (p ProxyType) scheme() (string, bool) {
	switch p {
	case ProxyHTTP, ProxyHTTPS, ProxySOCKS4, ProxySOCKS5:
		return string(p) + "://", true
	}
	return "", false
}

// label is the type name used in validation messages.
func (p ProxyType) label() string {
	switch p {
	case ProxyHTTP:
		return "Http"
	case ProxyHTTPS:
		return "Https"
	case ProxySOCKS4:
		return "Socks4"
	case ProxySOCKS5:
		return "Socks5"
	}
	return string(p)
}

type Proxy struct {
	Enabled bool      `koanf:"enabled" toml:"enabled"`
	Type    ProxyType `koanf:"type" toml:"type"`
	URL     string    `koanf:"url" toml:"url,omitempty"`
}

// EnvVar returns the variable name and value child processes need to use
// the proxy. ok is false when the proxy is disabled or has no URL.
func (p Proxy) EnvVar() (name, value string, ok bool) {
	if !p.Enabled || p.URL == "" {
		return "", "", false
	}
	switch p.Type {
	case ProxyHTTPS:
		return "HTTPS_PROXY", p.URL, true
	case ProxySOCKS4, ProxySOCKS5:
		return "ALL_PROXY", p.URL, true
	default:
		return "HTTP_PROXY", p.URL, true
	}
}

// Env returns EnvVar as NAME=value entries, ready to append to a command environment.
func (p Proxy) Env() []string {
	name, value, ok := p.EnvVar()
	if !ok {
		return nil
	}
	return []string{name + "=" + value}
}

// Transport returns an HTTP transport that routes through the proxy when it
// is enabled. Otherwise the proxy environment variables apply. SOCKS4 is
// not supported by net/http and falls back to the environment as well.
func (p Proxy) Transport() *http.Transport {
	t := &http.Transport{Proxy: http.ProxyFromEnvironment, ForceAttemptHTTP2: false}
	if !p.Enabled || p.URL == "" || p.Type == ProxySOCKS4 {
		return t
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return t
	}
	t.Proxy = http.ProxyURL(u)
	return t
}

type Settings struct {
	DownloadPath  string `koanf:"download_path" toml:"download_path,omitempty"`
	DefaultEditor string `koanf:"default_editor" toml:"default_editor,omitempty"`
	Proxy         Proxy  `koanf:"proxy" toml:"proxy"`
	GitHubToken   string `koanf:"github_token" toml:"github_token,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{Proxy: Proxy{Type: ProxyHTTP}}
}

// ValidationError reports a settings field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var settingsKeys = map[string]string{
	"download_path":  "download_path",
	"default_editor": "default_editor",
	"github_token":   "github_token",
	"proxy_enabled":  "proxy.enabled",
	"proxy_type":     "proxy.type",
	"proxy_url":      "proxy.url",
}

// LoadSettings layers defaults, the TOML file at path (when present) and
// DEVENV_* environment variables, in that order.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	defaults := DefaultSettings()
	if err := k.Load(confmap.Provider(map[string]any{
		"proxy.enabled": defaults.Proxy.Enabled,
		"proxy.type":    string(defaults.Proxy.Type),
	}, "."), nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load default settings: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return settingsKeys[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("failed to load environment settings: %w", err)
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.Proxy.Type == "" {
		s.Proxy.Type = ProxyHTTP
	}
	return s, nil
}

// Normalize trims surrounding whitespace and expands ~ in paths.
func (s Settings) Normalize() Settings {
	s.DownloadPath = expand(strings.TrimSpace(s.DownloadPath))
	s.DefaultEditor = expand(strings.TrimSpace(s.DefaultEditor))
	s.GitHubToken = strings.TrimSpace(s.GitHubToken)
	s.Proxy.URL = strings.TrimSpace(s.Proxy.URL)
	if s.Proxy.Type == "" {
		s.Proxy.Type = ProxyHTTP
	}
	return s
}

func expand(p string) string {
	if p == "" {
		return p
	}
	if out, err := homedir.Expand(p); err == nil {
		return out
	}
	return p
}

func (s Settings) Validate() error {
	if s.DownloadPath != "" {
		if err := ValidateDownloadPath(s.DownloadPath); err != nil {
			return err
		}
	}
	if s.DefaultEditor != "" {
		if err := ValidateEditorPath(s.DefaultEditor); err != nil {
			return err
		}
	}
	if _, ok := s.Proxy.Type.scheme(); !ok {
		return invalid("proxy.type", "Unknown proxy type: %s", s.Proxy.Type)
	}
	if s.Proxy.Enabled && s.Proxy.URL != "" {
		if err := ValidateProxyURL(s.Proxy.URL, s.Proxy.Type); err != nil {
			return err
		}
	}
	return nil
}

func ValidateDownloadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return invalid("download_path", "Path does not exist: %s", path)
	}
	if !info.IsDir() {
		return invalid("download_path", "Path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".devenv_write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		return invalid("download_path", "Path is not writable: %s (%v)", path, err)
	}
	_ = os.Remove(testFile)
	return nil
}

func ValidateEditorPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return invalid("default_editor", "Editor path does not exist: %s", path)
	}

	if info.IsDir() {
		if strings.HasSuffix(path, ".app") {
			if c, err := os.Stat(filepath.Join(path, "Contents")); err == nil && c.IsDir() {
				return nil
			}
			return invalid("default_editor", "Editor path appears to be an .app bundle but is missing Contents directory: %s", path)
		}
		return invalid("default_editor", "Editor path is a directory but not a valid .app bundle: %s", path)
	}

	if !info.Mode().IsRegular() {
		return invalid("default_editor", "Editor path is not a file: %s", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return invalid("default_editor", "Editor path is not executable: %s", path)
	}
	return nil
}

func ValidateProxyURL(url string, t ProxyType) error {
	prefix, ok := t.scheme()
	if !ok {
		return invalid("proxy.type", "Unknown proxy type: %s", t)
	}
	if !strings.HasPrefix(url, prefix) {
		return invalid("proxy.url", "Proxy URL must start with %s for %s proxy type", prefix, t.label())
	}

	rest := strings.TrimPrefix(url, prefix)
	if rest == "" {
		return invalid("proxy.url", "Proxy URL must include host and port")
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return invalid("proxy.url", "Proxy URL must include port (format: host:port)")
	}
	if i == 0 || strings.HasSuffix(rest[:i], "@") {
		return invalid("proxy.url", "Proxy URL must include host and port")
	}
	port, err := strconv.Atoi(rest[i+1:])
	if err != nil || port < 1 || port > 65535 {
		return invalid("proxy.url", "Proxy URL port must be a valid number (1-65535)")
	}
	return nil
}

// SaveSettings validates s and writes it to path atomically.
func SaveSettings(path string, s Settings) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	return writeSettings(path, s)
}

// ResetSettings overwrites path with the defaults.
func ResetSettings(path string) error {
	return writeSettings(path, DefaultSettings())
}

func writeSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml2.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", path, err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to write settings file %s: %w", path, err)
	}
	return nil
}

// Set assigns one settings key from its string form, as used by
// "devenv settings set".
func (s *Settings) Set(key, value string) error {
	switch key {
	case "download_path":
		s.DownloadPath = value
	case "default_editor":
		s.DefaultEditor = value
	case "github_token":
		s.GitHubToken = value
	case "proxy.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalid(key, "proxy.enabled must be true or false")
		}
		s.Proxy.Enabled = b
	case "proxy.type":
		s.Proxy.Type = ProxyType(strings.ToLower(value))
	case "proxy.url":
		s.Proxy.URL = value
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys(), ", "))
	}
	return nil
}

func SettingKeys() []string {
	return []string{"download_path", "default_editor", "github_token", "proxy.enabled", "proxy.type", "proxy.url"}
}
