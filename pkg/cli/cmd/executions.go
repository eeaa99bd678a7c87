package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aliciakaith/flowgrid/pkg/cli/output"
)

// executionsCmd executions命令组
var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "查看执行记录",
}

// executionsRecentCmd 最近执行
var executionsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "列出组织内最近执行",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()

		var resp struct {
			Data struct {
				Items []struct {
					ID              string `json:"id"`
					FlowID          string `json:"flow_id"`
					Status          string `json:"status"`
					TriggerType     string `json:"trigger_type"`
					StartedAt       string `json:"started_at"`
					ExecutionTimeMs int64  `json:"execution_time_ms"`
				} `json:"items"`
			} `json:"data"`
		}
		if err := client.getJSON("/api/v1/executions/recent", &resp); err != nil {
			return err
		}

		if outputJSON {
			return output.JSON(resp.Data.Items)
		}

		table := output.NewTable([]string{"ID", "FLOW", "STATUS", "TRIGGER", "STARTED", "MS"})
		for _, e := range resp.Data.Items {
			table.AddRow([]string{
				e.ID, e.FlowID, output.ColorStatus(e.Status), e.TriggerType,
				e.StartedAt, fmt.Sprintf("%d", e.ExecutionTimeMs),
			})
		}
		table.Render()
		return nil
	},
}

// executionsLogsCmd 执行日志
var executionsLogsCmd = &cobra.Command{
	Use:   "logs <execution-id>",
	Short: "查看执行日志",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()

		var resp struct {
			Data []struct {
				Level     string `json:"level"`
				Message   string `json:"message"`
				CreatedAt string `json:"created_at"`
			} `json:"data"`
		}
		if err := client.getJSON("/api/v1/executions/"+args[0]+"/logs", &resp); err != nil {
			return err
		}

		if outputJSON {
			return output.JSON(resp.Data)
		}

		for _, l := range resp.Data {
			fmt.Printf("%s [%s] %s\n", l.CreatedAt, l.Level, l.Message)
		}
		return nil
	},
}

func init() {
	executionsCmd.AddCommand(executionsRecentCmd)
	executionsCmd.AddCommand(executionsLogsCmd)
}
