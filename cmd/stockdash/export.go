package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/stockdash/internal/identity"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Archive watchlist snapshots",
	Long:  `Commands for writing, listing, reading and deleting archived watchlist snapshots.`,
}

var exportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Archive the current watchlists",
	Args:  cobra.NoArgs,
	RunE:  runExportCreate,
}

var exportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runExportList,
}

var exportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportShow,
}

var exportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an archived snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportDelete,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCreateCmd)
	exportCmd.AddCommand(exportListCmd)
	exportCmd.AddCommand(exportShowCmd)
	exportCmd.AddCommand(exportDeleteCmd)
}

func runExportCreate(cmd *cobra.Command, args []string) error {
	return initialized(cmd, func(ctx context.Context, c *components) error {
		s := c.manager.Snapshot()
		info, err := c.exporter.Export(ctx, identity.UserIDOf(c.session), s.Active, s.Watchlists)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d watchlists to %s (id %s)\n", len(s.Watchlists), info.Path, info.ID)
		return nil
	})
}

func runExportList(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *components) error {
		exports, err := c.exporter.List(commandContext(cmd), identity.UserIDOf(c.session))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(exports) == 0 {
			fmt.Fprintln(out, "No exports found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tPATH\t")
		fmt.Fprintln(w, "--\t-------\t----\t")
		for _, e := range exports {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Path)
		}
		return w.Flush()
	})
}

func runExportShow(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *components) error {
		snap, err := c.exporter.Read(commandContext(cmd), identity.UserIDOf(c.session), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	})
}

func runExportDelete(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *components) error {
		if err := c.exporter.Delete(commandContext(cmd), identity.UserIDOf(c.session), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted export %s\n", args[0])
		return nil
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
