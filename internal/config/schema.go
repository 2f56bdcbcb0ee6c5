package config

// Config is the top-level YAML structure.
type Config struct {
	ListenAddr   string        `yaml:"listen_addr"`
	TemplatePath string        `yaml:"template_path"`
	Webhook      WebhookConf   `yaml:"webhook"`
	Dispatch     DispatchConf  `yaml:"dispatch"`
	Notifiers    NotifiersConf `yaml:"notifiers"`
}

// WebhookConf covers inbound signature verification.
type WebhookConf struct {
	Secret           string `yaml:"secret"`
	ToleranceSeconds int    `yaml:"tolerance_seconds"`
}

// DispatchConf holds tunable fan-out settings.
type DispatchConf struct {
	// SendRatePerSec caps outbound calls per channel; chat-bot APIs throttle
	// aggressively. Zero disables the limiter.
	SendRatePerSec int `yaml:"send_rate_per_sec"`
	SendTimeoutMs  int `yaml:"send_timeout_ms"`
}

// NotifiersConf groups all channel configs. A channel is enabled purely by
// the presence of its required keys; absence disables it silently.
type NotifiersConf struct {
	Email    EmailConf    `yaml:"email"`
	Telegram TelegramConf `yaml:"telegram"`
	Bark     BarkConf     `yaml:"bark"`
	DingTalk DingTalkConf `yaml:"dingtalk"`
}

// EmailConf drives the HTTP mail-API channel. Requires APIKey and To.
type EmailConf struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Subject  string `yaml:"subject"`
	// ExtraHeaders is an optional JSON object of additional mail headers,
	// passed through to the API verbatim.
	ExtraHeaders string `yaml:"extra_headers"`
}

// TelegramConf requires both BotToken and ChatID.
type TelegramConf struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// BarkConf requires only DeviceKey.
type BarkConf struct {
	ServerURL string `yaml:"server_url"`
	DeviceKey string `yaml:"device_key"`
}

// DingTalkConf requires WebhookURL and Secret; Secret also feeds the
// per-call request signing.
type DingTalkConf struct {
	WebhookURL string `yaml:"webhook_url"`
	Secret     string `yaml:"secret"`
}
