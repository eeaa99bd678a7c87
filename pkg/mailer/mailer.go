// Package mailer SMTP邮件发送能力
// 注册验证码与错误告警经此发出；发送超时15秒
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

// SendTimeout 单次发送超时
const SendTimeout = 15 * time.Second

// Config SMTP配置
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured SMTP是否可用
func (c Config) Configured() bool {
	return c.Host != "" && c.From != ""
}

// Mailer SMTP发送器（对外导出）
type Mailer struct {
	cfg Config
}

// New 创建发送器
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send 发送一封纯文本邮件（对外导出）
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.cfg.Configured() {
		// 开发环境常见：未配置SMTP时记日志即可
		log.Printf("📧 [未配置SMTP] to=%s subject=%s", to, subject)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	// net/smtp不带上下文，用协程+超时包一层
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
	}()

	timeout := time.NewTimer(SendTimeout)
	defer timeout.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("发送邮件失败: %w", err)
		}
		log.Printf("📧 邮件已发送: to=%s subject=%s", to, subject)
		return nil
	case <-timeout.C:
		return fmt.Errorf("发送邮件超时（%s）", SendTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
