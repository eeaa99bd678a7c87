package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aliciakaith/flowgrid/pkg/api"
	"github.com/aliciakaith/flowgrid/pkg/auth"
	"github.com/aliciakaith/flowgrid/pkg/config"
	"github.com/aliciakaith/flowgrid/pkg/core/bus"
	"github.com/aliciakaith/flowgrid/pkg/core/engine"
	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/core/vault"
	"github.com/aliciakaith/flowgrid/pkg/core/verify"
	"github.com/aliciakaith/flowgrid/pkg/mailer"
	"github.com/aliciakaith/flowgrid/pkg/provider"
	"github.com/aliciakaith/flowgrid/pkg/report"
	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/storage/postgres"
	"github.com/aliciakaith/flowgrid/pkg/storage/sqlite"
	"github.com/aliciakaith/flowgrid/pkg/sweep"
)

var serverPort int

// serverCmd server命令：装配并运行整个平台
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动flowgrid服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "HTTP监听端口（覆盖配置文件）")
}

// runServer 平台装配与生命周期管理
// Store在此构建一次，按引用传给各组件；不使用进程级全局句柄
func runServer() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if serverPort > 0 {
		cfg.HTTPPort = serverPort
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET未配置")
	}

	// 1. 存储
	store, dsn, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. 保管库（密钥缺失时保持nil，写入失败关闭）
	var v *vault.Vault
	if key := decodeEncKey(cfg.Secrets.EncKey); key != nil {
		v, err = vault.New(key)
		if err != nil {
			return fmt.Errorf("初始化保管库失败: %w", err)
		}
	} else {
		log.Println("⚠️ SECRETS_ENC_KEY未配置，凭证写入将被拒绝")
	}

	// 3. SSRF防护（dev模式放行本地地址，便于本机联调）
	g := &guard.Guard{AllowPrivate: cfg.Mode == "dev"}

	// 4. 事件总线与数据库通知桥接
	b := bus.NewBus()
	if err := b.Start(); err != nil {
		return fmt.Errorf("启动事件总线失败: %w", err)
	}
	defer b.Stop()

	var listener *bus.StoreListener
	if store.Dialect().SupportsNotify() {
		listener = bus.NewStoreListener(dsn, postgres.NotifyChannel, b)
		listener.Start()
		defer listener.Stop()
	} else {
		log.Println("⚠️ 当前存储不支持LISTEN/NOTIFY，事件桥接关闭（仅组件直接广播可达）")
	}

	// 5. 邮件
	m := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	// 6. provider客户端
	mtnCreds := provider.MTNCredentials{
		SubscriptionKey: cfg.Providers.MtnSubscriptionKey,
		APIUser:         cfg.Providers.MtnAPIUser,
		APIKey:          cfg.Providers.MtnAPIKey,
	}
	flwCreds := provider.FlutterwaveCredentials{
		SecretKey:     cfg.Providers.FlwSecretKey,
		WebhookSecret: cfg.Providers.FlwWebhookSecret,
	}
	providers := provider.NewRegistry(store.TxEvents, mtnCreds, flwCreds)

	// 7. 执行引擎
	eng := engine.NewEngine(store, providers, g, b, m)
	eng.SetGraceWindow(time.Duration(cfg.Engine.ShutdownGraceSeconds) * time.Second)
	eng.Start()
	defer eng.Stop()

	// 8. 集成验证工作器 + 启动自检
	worker := verify.NewWorker(store, b, g)
	defer worker.Stop()
	worker.StartupSelfCheck(context.Background(), mtnCreds, flwCreds)

	// 9. 周期维护任务
	sweeper := sweep.NewSweeper(store, eng, time.Duration(cfg.Engine.StaleThresholdMin)*time.Minute)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("启动周期任务失败: %w", err)
	}
	defer sweeper.Stop()

	// 10. Google OIDC（可选）
	var google *auth.GoogleProvider
	if cfg.Auth.GoogleClientID != "" {
		redirectURL := fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.HTTPPort)
		if cfg.Mode == "production" && cfg.Auth.FrontendOrigin != "" {
			redirectURL = cfg.Auth.FrontendOrigin + "/auth/google/callback"
		}
		google, err = auth.NewGoogleProvider(context.Background(), cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, redirectURL)
		if err != nil {
			log.Printf("⚠️ 初始化Google OIDC失败，跳过: %v", err)
		}
	}

	// 11. 合规报告
	reports := report.NewGenerator(store, cfg.Reports.Dir, nil)

	// 12. HTTP服务器
	serverCfg := api.DefaultServerConfig()
	serverCfg.Port = cfg.HTTPPort
	apiServer := api.NewAPIServer(api.Deps{
		Store:          store,
		Engine:         eng,
		Worker:         worker,
		Bus:            b,
		Vault:          v,
		Guard:          g,
		Mailer:         m,
		Reports:        reports,
		Google:         google,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		FrontendOrigin: cfg.Auth.FrontendOrigin,
		SecureCookies:  cfg.Mode == "production",
		Version:        Version,
	}, serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("🛑 收到信号 %s，开始关停", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API关停失败: %v", err)
	}

	return nil
}

// openStore 按配置打开存储
func openStore(cfg *config.Config) (*storage.Store, string, error) {
	// DISABLE_DB或sqlite驱动：退化到本地文件库（开发/演示）
	if cfg.Flags.DisableDB || cfg.Database.Driver == "sqlite" {
		path := cfg.Database.Path
		if path == "" {
			path = "flowgrid.db"
		}
		store, err := storage.NewStoreFromDSN(path, sqlite.NewSQLiteDialect())
		if err != nil {
			return nil, "", fmt.Errorf("打开sqlite存储失败: %w", err)
		}
		return store, path, nil
	}

	dsn := cfg.Database.URL
	if dsn == "" {
		return nil, "", fmt.Errorf("DATABASE_URL未配置")
	}
	if cfg.Flags.PGSSLNoVerify && !strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		// lib/pq的require模式不校验证书链
		dsn += sep + "sslmode=require"
	}

	store, err := storage.NewStoreFromDSN(dsn, postgres.NewPostgresDialect())
	if err != nil {
		return nil, "", fmt.Errorf("打开postgres存储失败: %w", err)
	}
	return store, dsn, nil
}

// decodeEncKey 解析加密密钥：64字符hex或32字节原文
func decodeEncKey(raw string) []byte {
	if raw == "" {
		return nil
	}
	if len(raw) == 64 {
		if key, err := hex.DecodeString(raw); err == nil {
			return key
		}
	}
	if len(raw) == 32 {
		return []byte(raw)
	}
	log.Printf("⚠️ SECRETS_ENC_KEY长度非法（需32字节或64字符hex）")
	return nil
}
