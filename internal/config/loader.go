package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and watches it for changes. Since channel
// enablement is decided by key presence alone, a reload can turn notifiers
// on or off without a restart.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load. A missing file
// is not an error: secrets-only deployments run entirely off environment
// variables (see applyEnv).
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Keep serving the old config.
						continue
					}
					l.swap(cfg)
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.swap(cfg)
	return cfg, nil
}

func (l *Loader) swap(cfg *Config) {
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func (l *Loader) load() (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(l.path)
	switch {
	case os.IsNotExist(err):
		// Env-only mode.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}

	applyEnv(&cfg)

	// Apply defaults.
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Webhook.ToleranceSeconds == 0 {
		cfg.Webhook.ToleranceSeconds = 300
	}
	if cfg.Dispatch.SendTimeoutMs == 0 {
		cfg.Dispatch.SendTimeoutMs = 10000
	}
	return &cfg, nil
}

// applyEnv overlays the flat environment mapping onto the file config. Env
// values win so that secrets never have to live on disk.
func applyEnv(cfg *Config) {
	overlay := []struct {
		name string
		dst  *string
	}{
		{"STRIPE_WEBHOOK_SECRET", &cfg.Webhook.Secret},
		{"EMAIL_ENDPOINT", &cfg.Notifiers.Email.Endpoint},
		{"EMAIL_API_KEY", &cfg.Notifiers.Email.APIKey},
		{"EMAIL_FROM", &cfg.Notifiers.Email.From},
		{"EMAIL_TO", &cfg.Notifiers.Email.To},
		{"EMAIL_SUBJECT", &cfg.Notifiers.Email.Subject},
		{"EMAIL_EXTRA_HEADERS", &cfg.Notifiers.Email.ExtraHeaders},
		{"TELEGRAM_BOT_TOKEN", &cfg.Notifiers.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Notifiers.Telegram.ChatID},
		{"BARK_DEVICE_KEY", &cfg.Notifiers.Bark.DeviceKey},
		{"BARK_SERVER_URL", &cfg.Notifiers.Bark.ServerURL},
		{"DINGTALK_WEBHOOK_URL", &cfg.Notifiers.DingTalk.WebhookURL},
		{"DINGTALK_SECRET", &cfg.Notifiers.DingTalk.Secret},
	}
	for _, o := range overlay {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}
