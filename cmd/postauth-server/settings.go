package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	postAuth "github.com/MrEthical07/postAuth"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Env string `mapstructure:"env"`
}

type HTTPCfg struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
}

type StoreCfg struct {
	Driver string `mapstructure:"driver"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SessionCfg struct {
	Secret         string        `mapstructure:"secret"`
	SigningMethod  string        `mapstructure:"signing_method"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	TTL            time.Duration `mapstructure:"ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

type PasswordCfg struct {
	Pepper string `mapstructure:"pepper"`
}

type SMSCfg struct {
	Driver   string        `mapstructure:"driver"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Workers  int           `mapstructure:"workers"`
}

type AuditCfg struct {
	Output string `mapstructure:"output"`
}

type ThrottleCfg struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type AdminCfg struct {
	Username    string `mapstructure:"username"`
	Email       string `mapstructure:"email"`
	Password    string `mapstructure:"password"`
	PhoneNumber string `mapstructure:"phone_number"`
}

type Settings struct {
	App      AppCfg      `mapstructure:"app"`
	HTTP     HTTPCfg     `mapstructure:"http"`
	Store    StoreCfg    `mapstructure:"store"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Mongo    MongoCfg    `mapstructure:"mongo"`
	Session  SessionCfg  `mapstructure:"session"`
	Password PasswordCfg `mapstructure:"password"`
	SMS      SMSCfg      `mapstructure:"sms"`
	Audit    AuditCfg    `mapstructure:"audit"`
	Throttle ThrottleCfg `mapstructure:"throttle"`
	Admin    AdminCfg    `mapstructure:"admin"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.cookie_secure", true)
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.trust_proxy", false)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pa")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "postauth")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.signing_method", "hs256")
	v.SetDefault("session.private_key_path", "")
	v.SetDefault("session.public_key_path", "")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.issuer", "postauth")

	v.SetDefault("password.pepper", "")

	v.SetDefault("sms.driver", "log")
	v.SetDefault("sms.endpoint", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.timeout", 10*time.Second)
	v.SetDefault("sms.workers", 2)

	v.SetDefault("audit.output", "zap")

	v.SetDefault("throttle.enabled", false)
	v.SetDefault("throttle.max_attempts", 20)
	v.SetDefault("throttle.window", 15*time.Minute)

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.phone_number", "")
}

// loadSettings reads path (or ./postauth.yaml when path is empty and the
// file exists) and applies POSTAUTH_* environment overrides.
func loadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("POSTAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Secrets are also accepted under their conventional names.
	_ = v.BindEnv("session.secret", "POSTAUTH_SESSION_SECRET", "SESSION_SECRET")
	_ = v.BindEnv("password.pepper", "POSTAUTH_PASSWORD_PEPPER", "PASSWORD_PEPPER")
	_ = v.BindEnv("sms.api_key", "POSTAUTH_SMS_API_KEY", "SMS_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("postauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &s, nil
}

func (s *Settings) development() bool {
	return s.App.Env == "development" || s.App.Env == "dev"
}

// engineConfig overlays the settings onto postAuth.DefaultConfig.
func (s *Settings) engineConfig() (postAuth.Config, error) {
	cfg := postAuth.DefaultConfig()
	cfg.Session.TTL = s.Session.TTL
	cfg.Session.Issuer = s.Session.Issuer
	cfg.Session.SigningMethod = strings.ToLower(s.Session.SigningMethod)
	cfg.Password.Pepper = []byte(s.Password.Pepper)
	cfg.SMS.Workers = s.SMS.Workers
	cfg.SMS.SendTimeout = s.SMS.Timeout
	cfg.Audit.Enabled = s.Audit.Output != "none"
	cfg.Throttle.Enabled = s.Throttle.Enabled
	cfg.Throttle.MaxAttempts = s.Throttle.MaxAttempts
	cfg.Throttle.Window = s.Throttle.Window
	cfg.Throttle.KeyPrefix = s.Redis.Prefix

	switch cfg.Session.SigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(s.Session.PrivateKeyPath)
		if err != nil {
			return cfg, fmt.Errorf("read session private key: %w", err)
		}
		pub, err := os.ReadFile(s.Session.PublicKeyPath)
		if err != nil {
			return cfg, fmt.Errorf("read session public key: %w", err)
		}
		cfg.Session.PrivateKey = priv
		cfg.Session.PublicKey = pub
	default:
		cfg.Session.PrivateKey = []byte(s.Session.Secret)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
