package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load 加载配置文件并叠加环境变量（对外导出）
// 文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := &Config{
		Mode:     "dev",
		HTTPPort: 8080,
	}
	cfg.Database.Driver = "postgres"
	cfg.Engine.ShutdownGraceSeconds = 30
	cfg.Engine.StaleThresholdMin = 30

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 环境变量覆盖（敏感项只从环境读）
func (c *Config) applyEnv() {
	envStr(&c.Auth.JWTSecret, "JWT_SECRET")
	envStr(&c.Secrets.EncKey, "SECRETS_ENC_KEY")
	envStr(&c.Database.URL, "DATABASE_URL")

	envStr(&c.SMTP.Host, "SMTP_HOST")
	envInt(&c.SMTP.Port, "SMTP_PORT")
	envStr(&c.SMTP.Username, "SMTP_USER")
	envStr(&c.SMTP.Password, "SMTP_PASS")
	envStr(&c.SMTP.From, "SMTP_FROM")

	envStr(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	envStr(&c.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	envStr(&c.Auth.FrontendOrigin, "FRONTEND_ORIGIN")

	envStr(&c.Providers.FlwSecretKey, "FLW_SECRET_KEY")
	envStr(&c.Providers.FlwWebhookSecret, "FLW_WEBHOOK_SECRET")
	envStr(&c.Providers.MtnSubscriptionKey, "MTN_SUBSCRIPTION_KEY")
	envStr(&c.Providers.MtnAPIUser, "MTN_API_USER")
	envStr(&c.Providers.MtnAPIKey, "MTN_API_KEY")

	envBool(&c.Flags.DisableDB, "DISABLE_DB")
	envBool(&c.Flags.PGSSLNoVerify, "PGSSL_NO_VERIFY")

	if mode := os.Getenv("NODE_ENV"); mode != "" {
		c.Mode = mode
	}
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
