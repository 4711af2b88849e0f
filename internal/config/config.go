// Package config loads the bridge configuration: a YAML file, then
// environment overrides, then defaults, then validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/ratelimit"
)

const DefaultPath = "config/default.yaml"

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Device        DeviceConfig        `yaml:"device"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Publishers    PublishersConfig    `yaml:"publishers"`
	Poller        PollerConfig        `yaml:"poller"`
	SnapshotCache SnapshotCacheConfig `yaml:"snapshot_cache"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicBaseURL is where the device reaches this bridge, e.g. http://10.0.0.5:8080.
	PublicBaseURL string `yaml:"public_base_url"`
}

type DeviceConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Scheme         string        `yaml:"scheme"`
	AuthType       string        `yaml:"auth_type"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RTSPPortForced int           `yaml:"rtsp_port_forced"`
	Timeout        time.Duration `yaml:"timeout"`
	VerifyTLS      bool          `yaml:"verify_tls"`
}

// Target returns the connection target of the device.
func (d DeviceConfig) Target() adapters.Target {
	return adapters.Target{Host: d.Host, Port: d.Port, Scheme: d.Scheme, RTSPPort: d.RTSPPortForced}
}

func (d DeviceConfig) Credential() adapters.Credential {
	return adapters.Credential{Username: d.Username, Password: d.Password, AuthType: d.AuthType}
}

type NotificationsConfig struct {
	AlarmServerPath  string        `yaml:"alarm_server_path"`
	SetAlarmServer   bool          `yaml:"set_alarm_server"`
	AutoResetTimeout time.Duration `yaml:"auto_reset_timeout"`
}

type PublishersConfig struct {
	NATS  NATSConfig  `yaml:"nats"`
	Redis RedisConfig `yaml:"redis"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

type NATSConfig struct {
	URL        string `yaml:"url"`
	Subject    string `yaml:"subject"`
	MaxRetries int    `yaml:"max_retries"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type SnapshotCacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
}

type RateLimitConfig struct {
	Actions ratelimit.LimitConfig `yaml:"actions"`
}

// Load reads path, applies env overrides and defaults, and validates.
// A missing file is not an error; the bridge can run from env alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Device.Host, "HIK_HOST")
	setString(&c.Device.Username, "HIK_USERNAME")
	setString(&c.Device.Password, "HIK_PASSWORD")
	setString(&c.Publishers.NATS.URL, "NATS_URL")
	setString(&c.Publishers.Redis.Addr, "REDIS_ADDR")
	setString(&c.Publishers.MQTT.Broker, "MQTT_BROKER")
	setString(&c.Auth.JWTSigningKey, "JWT_SIGNING_KEY")

	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Device.Scheme == "" {
		c.Device.Scheme = "http"
	}
	if c.Device.Port == 0 {
		if c.Device.Scheme == "https" {
			c.Device.Port = 443
		} else {
			c.Device.Port = 80
		}
	}
	if c.Device.AuthType == "" {
		c.Device.AuthType = "digest"
	}
	if c.Device.Timeout <= 0 {
		c.Device.Timeout = adapters.DefaultTimeout * time.Second
	}
	if c.Notifications.AlarmServerPath == "" {
		c.Notifications.AlarmServerPath = "/api/hikvision"
	}
	if !strings.HasPrefix(c.Notifications.AlarmServerPath, "/") {
		c.Notifications.AlarmServerPath = "/" + c.Notifications.AlarmServerPath
	}
	if c.Notifications.AutoResetTimeout <= 0 {
		c.Notifications.AutoResetTimeout = 30 * time.Second
	}
	if c.Publishers.NATS.Subject == "" {
		c.Publishers.NATS.Subject = "hikvision.events"
	}
	if c.Publishers.NATS.MaxRetries <= 0 {
		c.Publishers.NATS.MaxRetries = 3
	}
	if c.Publishers.Redis.Channel == "" {
		c.Publishers.Redis.Channel = "hikvision:events"
	}
	if c.Publishers.MQTT.TopicPrefix == "" {
		c.Publishers.MQTT.TopicPrefix = "hikvision"
	}
	if c.Publishers.MQTT.ClientID == "" {
		c.Publishers.MQTT.ClientID = "hikvision-bridge"
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = 60 * time.Second
	}
	if c.SnapshotCache.Size <= 0 {
		c.SnapshotCache.Size = 64
	}
	if c.SnapshotCache.TTL <= 0 {
		c.SnapshotCache.TTL = 10 * time.Second
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Device.Host == "" {
		return errors.New("device.host is required (or HIK_HOST)")
	}
	if c.Device.Username == "" {
		return errors.New("device.username is required (or HIK_USERNAME)")
	}
	switch c.Device.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("device.scheme must be http or https, got %q", c.Device.Scheme)
	}
	switch c.Device.AuthType {
	case "basic", "digest":
	default:
		return fmt.Errorf("device.auth_type must be basic or digest, got %q", c.Device.AuthType)
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return fmt.Errorf("device.port out of range: %d", c.Device.Port)
	}
	if c.Publishers.MQTT.QoS > 2 {
		return fmt.Errorf("publishers.mqtt.qos must be 0, 1 or 2, got %d", c.Publishers.MQTT.QoS)
	}
	if c.Notifications.SetAlarmServer && c.Server.PublicBaseURL == "" {
		return errors.New("server.public_base_url is required when notifications.set_alarm_server is on")
	}
	if c.Auth.JWTSigningKey == "" {
		return errors.New("auth.jwt_signing_key is required (or JWT_SIGNING_KEY)")
	}
	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr: %w", err)
	} else if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("server.addr has no valid port: %q", c.Server.Addr)
	}
	return nil
}
