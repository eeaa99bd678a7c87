// Package config 平台配置
// YAML文件为基底，环境变量覆盖敏感项
package config

// Config 平台核心配置
type Config struct {
	Mode     string `yaml:"mode"`
	HTTPPort int    `yaml:"http_port"`

	Database struct {
		Driver string `yaml:"driver"` // postgres | sqlite
		URL    string `yaml:"url"`
		Path   string `yaml:"path"` // sqlite文件路径
	} `yaml:"database"`

	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		GoogleClientID     string `yaml:"google_client_id"`
		GoogleClientSecret string `yaml:"google_client_secret"`
		FrontendOrigin     string `yaml:"frontend_origin"`
	} `yaml:"auth"`

	Secrets struct {
		EncKey string `yaml:"enc_key"` // 32字节AES-256密钥（hex或原文）
	} `yaml:"secrets"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Providers struct {
		FlwSecretKey       string `yaml:"flw_secret_key"`
		FlwWebhookSecret   string `yaml:"flw_webhook_secret"`
		MtnSubscriptionKey string `yaml:"mtn_subscription_key"`
		MtnAPIUser         string `yaml:"mtn_api_user"`
		MtnAPIKey          string `yaml:"mtn_api_key"`
	} `yaml:"providers"`

	Engine struct {
		ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
		StaleThresholdMin    int `yaml:"stale_threshold_min"`
	} `yaml:"engine"`

	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`

	Flags struct {
		DisableDB     bool `yaml:"disable_db"`
		PGSSLNoVerify bool `yaml:"pgssl_no_verify"`
	} `yaml:"flags"`
}
