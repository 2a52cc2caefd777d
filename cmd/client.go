package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
	"github.com/modcoretech/NG-Download-Manager/internal/view"
)

const requestTimeout = 30 * time.Second

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

var addCmd = &cobra.Command{
	Use:     "add <url>",
	Aliases: []string{"get"},
	Short:   "Download a link through the relay",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newChannelClient(utils.Discard())
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		click := relay.ContextMenuClick{MenuItemID: relay.MenuDownloadLink, LinkURL: args[0]}
		if media, _ := cmd.Flags().GetBool("media"); media {
			click = relay.ContextMenuClick{MenuItemID: relay.MenuDownloadMedia, SrcURL: args[0]}
		}

		id, err := client.ContextMenu(ctx, click)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Download started (#%d)\n", id)
		return nil
	},
}

var clearFinishedCmd = &cobra.Command{
	Use:   "clear-finished",
	Short: "Erase every complete or interrupted download from the list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newChannelClient(utils.Discard())
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		if err := client.PerformBulkAction(ctx, types.BulkClearAllFinished); err != nil {
			return fmt.Errorf("failed to clear finished downloads: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared finished downloads.")
		return nil
	},
}

var actionCmd = &cobra.Command{
	Use:   "action <id> <action>",
	Short: "Run one action on a download",
	Long: `Run one action on a download. Actions: pause, resume, cancel, open, show,
retry, clear, copyLink, saveAs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[:1])
		if err != nil {
			return err
		}
		action, err := types.ParseAction(args[1])
		if err != nil {
			return err
		}

		client, err := newChannelClient(utils.Discard())
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		if err := client.PerformAction(ctx, ids[0], action); err != nil {
			return fmt.Errorf("action '%s' failed: %w", action, err)
		}
		if action == types.ActionCopyLink {
			fmt.Fprintln(cmd.OutOrStdout(), "Link copied!")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: #%d\n", action, ids[0])
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <action> <id>...",
	Short: "Run one action on several downloads",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := types.ParseAction(args[0])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}

		client, err := newChannelClient(utils.Discard())
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		res, err := client.PerformBatchAction(ctx, ids, action)
		if err != nil {
			return fmt.Errorf("batch action '%s' failed: %w", action, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d succeeded, %d failed\n", action, len(res.Success), len(res.Failed))
		for _, f := range res.Failed {
			fmt.Fprintf(out, "  #%d: %s\n", f.ID, f.Reason)
		}
		if len(res.Failed) > 0 && len(res.Success) == 0 {
			return errors.New("every download failed")
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List downloads",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd)
		if err != nil {
			return err
		}

		client, err := newChannelClient(utils.Discard())
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()

		items, err := client.GetDownloads(ctx)
		if err != nil {
			return err
		}
		items = view.FilterAndSort(items, params, time.Now())

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		if len(items) == 0 {
			if params.Filtering() {
				fmt.Fprintln(out, "No downloads match your filters.")
			} else {
				fmt.Fprintln(out, "No downloads yet.")
			}
			return nil
		}
		fmt.Fprintln(out, renderList(items, time.Now()))
		return nil
	},
}

func listParams(cmd *cobra.Command) (view.Params, error) {
	params := view.DefaultParams()

	status, _ := cmd.Flags().GetString("status")
	params.Status = view.StatusFilter(status)
	if !slices.Contains(view.StatusFilters, params.Status) {
		return params, fmt.Errorf("invalid status %q", status)
	}

	date, _ := cmd.Flags().GetString("date")
	params.Date = view.DateFilter(date)
	if !slices.Contains(view.DateFilters, params.Date) {
		return params, fmt.Errorf("invalid date %q", date)
	}

	if sort, _ := cmd.Flags().GetString("sort"); sort != "" {
		if !slices.Contains(config.SortOrders, sort) {
			return params, fmt.Errorf("invalid sort %q", sort)
		}
		params.Sort = view.SortOrder(sort)
	}

	params.Search, _ = cmd.Flags().GetString("search")
	return params, nil
}

func renderList(items []types.DownloadItem, now time.Time) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		d := view.Project(item, now)
		progress := "-"
		if d.ShowProgress {
			progress = strconv.Itoa(int(d.Progress)) + "%"
		}
		rows = append(rows, []string{
			strconv.Itoa(d.ID),
			d.Filename,
			d.Status,
			progress,
			d.Size,
			strings.TrimSpace(d.Speed + " " + d.ETA),
			d.Date,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATUS", "PROGRESS", "SIZE", "SPEED", "STARTED").
		Rows(rows...).
		String()
}

func init() {
	addCmd.Flags().Bool("media", false, "Treat the URL as a media source rather than a link")

	listCmd.Flags().Bool("json", false, "Print the downloads as JSON")
	listCmd.Flags().String("status", string(view.StatusAll), "Status filter (all, active, in_progress, paused, interrupted, complete)")
	listCmd.Flags().String("date", string(view.DateAll), "Date filter (all, today, yesterday, last7days, last30days)")
	listCmd.Flags().String("sort", "", "Sort order (startTimeDesc, startTimeAsc, filenameAsc, filenameDesc, totalBytesDesc, totalBytesAsc)")
	listCmd.Flags().String("search", "", "Only show downloads whose name or URL contains this text")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(clearFinishedCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(listCmd)
}
