package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aliciakaith/flowgrid/pkg/cli/output"
)

// flowsCmd flows命令组
var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "管理Flow",
}

// flowsListCmd 列出Flow
var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出组织内的Flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()

		var resp struct {
			Data struct {
				Items []struct {
					ID        string `json:"id"`
					Name      string `json:"name"`
					Status    string `json:"status"`
					UpdatedAt string `json:"updated_at"`
				} `json:"items"`
			} `json:"data"`
		}
		if err := client.getJSON("/api/v1/flows", &resp); err != nil {
			return err
		}

		if outputJSON {
			return output.JSON(resp.Data.Items)
		}

		table := output.NewTable([]string{"ID", "NAME", "STATUS", "UPDATED"})
		for _, f := range resp.Data.Items {
			table.AddRow([]string{f.ID, f.Name, output.ColorStatus(f.Status), f.UpdatedAt})
		}
		table.Render()
		return nil
	},
}

// flowsVersionsCmd 列出Flow版本
var flowsVersionsCmd = &cobra.Command{
	Use:   "versions <flow-id>",
	Short: "列出Flow的版本",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()

		var resp struct {
			Data struct {
				Items []struct {
					Version   int    `json:"version"`
					CreatedAt string `json:"created_at"`
				} `json:"items"`
			} `json:"data"`
		}
		if err := client.getJSON("/api/v1/flows/"+args[0]+"/versions", &resp); err != nil {
			return err
		}

		if outputJSON {
			return output.JSON(resp.Data.Items)
		}

		table := output.NewTable([]string{"VERSION", "CREATED"})
		for _, v := range resp.Data.Items {
			table.AddRow([]string{fmt.Sprintf("%d", v.Version), v.CreatedAt})
		}
		table.Render()
		return nil
	},
}

func init() {
	flowsCmd.AddCommand(flowsListCmd)
	flowsCmd.AddCommand(flowsVersionsCmd)
}
