package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage scraping jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobListCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobResultCmd(clientFn, outputFn),
		newJobCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var priority int
	var vars []string
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "submit CONFIG_FILE",
		Short: "Submit a scraping job from a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			config, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}

			req := SubmitJobRequest{
				Config:   json.RawMessage(config),
				Priority: priority,
			}

			if len(vars) > 0 {
				req.InitialVars = make(map[string]any)
				for _, kv := range vars {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid var format %q, expected KEY=VALUE", kv)
					}
					req.InitialVars[parts[0]] = parts[1]
				}
			}

			if delay > 0 {
				at := time.Now().Add(delay)
				req.ScheduledAt = &at
			}

			job, err := client.SubmitJob(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", job.ID))
			out.Print(
				[]string{"ID", "NAME", "STATUS", "PRIORITY", "CREATED"},
				[][]string{{job.ID, job.ConfigName(), job.Status, strconv.Itoa(job.Priority), job.CreatedAt}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority (0-10)")
	cmd.Flags().StringSliceVar(&vars, "var", nil, "Initial variables as KEY=VALUE (repeatable)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before execution (e.g. 30s, 5m)")

	return cmd
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(ListJobsOpts{
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "PROGRESS", "ATTEMPTS", "CREATED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.ID,
					j.ConfigName(),
					j.Status,
					strconv.Itoa(j.Progress) + "%",
					strconv.Itoa(j.AttemptsMade),
					j.CreatedAt,
				}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (waiting, delayed, active, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "STATUS", "PROGRESS", "ATTEMPTS", "ERROR", "CREATED", "FINISHED"},
				[][]string{{
					job.ID,
					job.ConfigName(),
					job.Status,
					strconv.Itoa(job.Progress) + "%",
					strconv.Itoa(job.AttemptsMade),
					job.FailedReason,
					job.CreatedAt,
					job.FinishedAt,
				}},
				job,
			)
			return nil
		},
	}
}

func newJobResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "result ID",
		Short: "Show job result data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.GetJobResult(args[0])
			if err != nil {
				return err
			}

			if !out.jsonMode {
				keys := make([]string, 0, len(result.Data))
				for k := range result.Data {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				rows := make([][]string, len(keys))
				for i, k := range keys {
					rows[i] = []string{k, formatValue(result.Data[k])}
				}
				out.Table([]string{"FIELD", "VALUE"}, rows)
				return nil
			}

			out.JSON(result)
			return nil
		},
	}
}

func newJobCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelJob(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job cancelled: %s", args[0]))
			return nil
		},
	}
}

// NewValidateCmd создаёт команду проверки конфигурации.
func NewValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate CONFIG_FILE",
		Short: "Validate a scraping config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			config, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}

			result, err := client.ValidateConfig(json.RawMessage(config))
			if err != nil {
				return err
			}

			if result.Valid {
				out.Success("Config is valid")
				return nil
			}

			out.Error(result.Error)
			os.Exit(1)
			return nil
		},
	}
}

// NewStatsCmd создаёт команду статистики очереди.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetStats()
			if err != nil {
				return err
			}

			statuses := make([]string, 0, len(stats))
			for s := range stats {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)

			rows := make([][]string, len(statuses))
			for i, s := range statuses {
				rows[i] = []string{s, strconv.Itoa(stats[s])}
			}

			out.Print([]string{"STATUS", "COUNT"}, rows, stats)
			return nil
		},
	}
}

// formatValue приводит значение результата к строке для таблицы.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
