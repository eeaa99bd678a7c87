// Package cmd flowgrid命令行
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	sessionTok string
	outputJSON bool
	configPath string
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "flowgrid",
	Short: "flowgrid CLI - 集成流平台命令行工具",
	Long: `flowgrid CLI 是集成流平台的命令行工具。

支持的功能：
  - 启动平台服务（API + 引擎 + 验证工作器 + 事件总线）
  - 查看Flow与执行记录

使用示例：
  # 启动服务
  flowgrid server --config config.yaml

  # 列出Flow
  flowgrid flows list --token <session>

  # 查看最近执行
  flowgrid executions recent --token <session>`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "flowgrid服务器地址")
	rootCmd.PersistentFlags().StringVarP(&sessionTok, "token", "t", "", "会话令牌（读取命令需要）")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")

	// 添加子命令
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(versionCmd)
}
