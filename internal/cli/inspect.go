package cli

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/scrapeflow/internal/extract"
	"github.com/shaiso/scrapeflow/internal/httpx"
)

// NewInspectCmd создаёт команду локального осмотра страницы.
// Работает без API-сервера: скачивает страницу напрямую.
func NewInspectCmd(outputFn func() *Output) *cobra.Command {
	var showLinks bool
	var linkLimit int

	cmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Fetch a page and show its metadata and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			client, err := httpx.NewClient(nil, slog.Default())
			if err != nil {
				return err
			}

			resp, err := client.Do(cmd.Context(), httpx.Request{URL: args[0]})
			if err != nil {
				return err
			}

			meta, err := extract.Metadata(resp.Body)
			if err != nil {
				return err
			}

			links, err := extract.Links(resp.Body, resp.URL)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(map[string]any{
					"url":         resp.URL,
					"status":      resp.Status,
					"duration_ms": resp.DurationMs,
					"metadata":    meta,
					"links":       links,
				})
				return nil
			}

			out.Table(
				[]string{"FIELD", "VALUE"},
				[][]string{
					{"url", resp.URL},
					{"status", strconv.Itoa(resp.Status)},
					{"duration_ms", strconv.FormatInt(resp.DurationMs, 10)},
					{"title", meta.Title},
					{"description", meta.Description},
					{"canonical", meta.Canonical},
					{"language", meta.Language},
					{"og_title", meta.OGTitle},
					{"og_image", meta.OGImage},
					{"links", strconv.Itoa(len(links))},
				},
			)

			if showLinks {
				n := len(links)
				if linkLimit > 0 && linkLimit < n {
					n = linkLimit
				}
				rows := make([][]string, n)
				for i := 0; i < n; i++ {
					rows[i] = []string{links[i].URL, links[i].Text}
				}
				out.Table([]string{"URL", "TEXT"}, rows)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showLinks, "links", false, "List discovered links")
	cmd.Flags().IntVar(&linkLimit, "link-limit", 50, "Maximum number of links to list")

	return cmd
}
