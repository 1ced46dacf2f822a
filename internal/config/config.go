package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Upstream UpstreamConfig `json:"upstream"`
	Tiers    []TierConfig   `json:"tiers"`
	Auth     AuthConfig     `json:"auth"`
	IPGuard  IPGuardConfig  `json:"ip_guard"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// UpstreamConfig describes the generation API the broker fronts.
type UpstreamConfig struct {
	Targets             []string `json:"targets"`
	Strategy            string   `json:"strategy"`
	GeneratePath        string   `json:"generate_path"`
	RenewPath           string   `json:"renew_path"`
	TimeoutSeconds      int      `json:"timeout_seconds"`
	RenewalMarginSecs   int      `json:"renewal_margin_seconds"`
	RequestsPerSecond   float64  `json:"requests_per_second"`
	Burst               int      `json:"burst"`
	HealthCheckEndpoint string   `json:"health_check_endpoint"`
}

type TierConfig struct {
	Name        string `json:"name"`
	HourlyQuota int    `json:"hourly_quota"`
	Priority    int    `json:"priority"`
}

type AuthConfig struct {
	JWTSecret   string `json:"-"` // from JWT_SECRET env only
	ExpiryHours int    `json:"expiry_hours"`
}

// IPGuardConfig bounds unauthenticated traffic per source IP, in front of the
// per-client quota.
type IPGuardConfig struct {
	RequestsPerMinute int    `json:"requests_per_minute"`
	Algorithm         string `json:"algorithm"` // "fixed_window" "sliding_window"
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// Env always wins for secrets and connection endpoints
func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Host = v
		c.Redis.Port = ""
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Upstream.GeneratePath == "" {
		c.Upstream.GeneratePath = "/v1/generations"
	}
	if c.Upstream.RenewPath == "" {
		c.Upstream.RenewPath = "/v1/credentials"
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.RenewalMarginSecs <= 0 {
		c.Upstream.RenewalMarginSecs = 300 // 5 minutes of lead time
	}
	if c.Upstream.HealthCheckEndpoint == "" {
		c.Upstream.HealthCheckEndpoint = "/health"
	}
	if c.IPGuard.RequestsPerMinute <= 0 {
		c.IPGuard.RequestsPerMinute = 120
	}
	if c.Auth.ExpiryHours <= 0 {
		c.Auth.ExpiryHours = 24
	}
	// Both tiers must always be resolvable
	if c.FindTier("free") == nil {
		c.Tiers = append(c.Tiers, TierConfig{Name: "free", HourlyQuota: 10, Priority: 0})
	}
	if c.FindTier("premium") == nil {
		c.Tiers = append(c.Tiers, TierConfig{Name: "premium", HourlyQuota: 100, Priority: 10})
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User,
		c.Postgres.Password, c.Postgres.DBName, c.Postgres.SSLMode,
	)
}

func (r *RedisConfig) GetRedisAddr() string {
	if r.Port == "" {
		return r.Host
	}
	return r.Host + ":" + r.Port
}

func (u *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

func (u *UpstreamConfig) RenewalMargin() time.Duration {
	return time.Duration(u.RenewalMarginSecs) * time.Second
}

// FindTier returns the configured tier by name, or nil
func (c *Config) FindTier(name string) *TierConfig {
	for i := range c.Tiers {
		if c.Tiers[i].Name == name {
			return &c.Tiers[i]
		}
	}
	return nil
}
