package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCampaignCmd создаёт группу команд для управления кампаниями.
func NewCampaignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage scheduled campaigns",
	}

	cmd.AddCommand(
		newCampaignCreateCmd(clientFn, outputFn),
		newCampaignListCmd(clientFn, outputFn),
		newCampaignShowCmd(clientFn, outputFn),
		newCampaignEnableCmd(clientFn, outputFn, true),
		newCampaignEnableCmd(clientFn, outputFn, false),
	)

	return cmd
}

func newCampaignCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var priority int

	cmd := &cobra.Command{
		Use:   "create CONFIG_FILE",
		Short: "Create a campaign from a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			config, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}

			campaign, err := client.CreateCampaign(CreateCampaignRequest{
				Name:     name,
				CronExpr: cronExpr,
				Config:   json.RawMessage(config),
				Priority: priority,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Campaign created: %s", campaign.ID))
			out.Print(
				[]string{"ID", "NAME", "CRON", "ENABLED", "NEXT_DUE"},
				[][]string{{campaign.ID, campaign.Name, campaign.CronExpr, strconv.FormatBool(campaign.Enabled), campaign.NextDueAt}},
				campaign,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Campaign name (required)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron schedule, 5 fields (required)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority for spawned jobs (0-10)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("cron")

	return cmd
}

func newCampaignListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaigns, err := client.ListCampaigns()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "CRON", "ENABLED", "LAST_RUN", "NEXT_DUE"}
			rows := make([][]string, len(campaigns))
			for i, c := range campaigns {
				rows[i] = []string{c.ID, c.Name, c.CronExpr, strconv.FormatBool(c.Enabled), c.LastRunAt, c.NextDueAt}
			}

			out.Print(headers, rows, campaigns)
			return nil
		},
	}
}

func newCampaignShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show campaign details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			campaign, err := client.GetCampaign(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "CRON", "PRIORITY", "ENABLED", "LAST_RUN", "NEXT_DUE", "CREATED"},
				[][]string{{
					campaign.ID,
					campaign.Name,
					campaign.CronExpr,
					strconv.Itoa(campaign.Priority),
					strconv.FormatBool(campaign.Enabled),
					campaign.LastRunAt,
					campaign.NextDueAt,
					campaign.CreatedAt,
				}},
				campaign,
			)
			return nil
		},
	}
}

func newCampaignEnableCmd(clientFn func() *Client, outputFn func() *Output, enable bool) *cobra.Command {
	use := "enable ID"
	short := "Enable a campaign"
	verb := "enabled"
	if !enable {
		use = "disable ID"
		short = "Disable a campaign"
		verb = "disabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.SetCampaignEnabled(args[0], enable); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Campaign %s: %s", verb, args[0]))
			return nil
		},
	}
}
