package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/watchlist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchlistCmd = &cobra.Command{
	Use:     "watchlist",
	Aliases: []string{"wl"},
	Short:   "Watchlist operations",
	Long:    `Commands for listing and editing the signed-in user's watchlists.`,
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watchlists with current prices",
	Args:  cobra.NoArgs,
	RunE:  runWatchlistList,
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <watchlist> <symbol>",
	Short: "Add a symbol to a watchlist, creating the watchlist if needed",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatchlistAdd,
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove <watchlist> <symbol>",
	Short: "Remove a symbol from a watchlist",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatchlistRemove,
}

var watchlistDropCmd = &cobra.Command{
	Use:   "drop <watchlist>",
	Short: "Delete a watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchlistDrop,
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
	watchlistCmd.AddCommand(watchlistDropCmd)
}

// initialized loads the user's watchlists before fn runs.
func initialized(cmd *cobra.Command, fn func(ctx context.Context, c *components) error) error {
	return withComponents(func(c *components) error {
		ctx := commandContext(cmd)
		if !c.session.IsAuthenticated() {
			c.log.Warn("not signed in, watchlists are local only; pass --user")
		}
		if err := c.manager.Initialize(ctx); err != nil {
			if c.manager.Err() != watchlist.MsgDirectoryFailed {
				return err
			}
			c.log.Warn("symbol directory unavailable", zap.Error(err))
		}
		return fn(ctx, c)
	})
}

func runWatchlistList(cmd *cobra.Command, args []string) error {
	return initialized(cmd, func(ctx context.Context, c *components) error {
		s := c.manager.Snapshot()
		printWatchlists(cmd.OutOrStdout(), s)
		c.log.Info("watchlists listed", zap.Int("count", len(s.Watchlists)))
		return nil
	})
}

func printWatchlists(out io.Writer, s watchlist.State) {
	if len(s.Watchlists) == 0 {
		fmt.Fprintln(out, "No watchlists found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WATCHLIST\tSYMBOL\tNAME\tPRICE\t")
	fmt.Fprintln(w, "---------\t------\t----\t-----\t")
	for _, l := range s.Watchlists {
		if len(l.Entries) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\t\n", l.Name)
			continue
		}
		for _, e := range l.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", l.Name, e.Symbol, e.Name, e.Price)
		}
	}
	w.Flush()
}

func runWatchlistAdd(cmd *cobra.Command, args []string) error {
	name, symbol := args[0], args[1]
	return initialized(cmd, func(ctx context.Context, c *components) error {
		if hasWatchlist(c.manager.Snapshot(), name) {
			c.manager.SetActiveWatchlist(name)
		} else {
			c.manager.CreateWatchlist(name)
		}

		companyName := symbol
		if sym, ok := c.manager.LookupSymbol(symbol); ok {
			companyName = sym.Name
		}

		c.manager.ClearError()
		entry, err := c.manager.AddSuggestionToActive(ctx, symbol, companyName)
		if err != nil {
			return fmt.Errorf("adding %s to %s: %w", symbol, name, err)
		}
		if msg := c.manager.Err(); msg == watchlist.MsgSaveStockFailed {
			return fmt.Errorf("%s %s", msg, symbol)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) to %s at %s\n", entry.Symbol, entry.Name, name, entry.Price)
		return nil
	})
}

func hasWatchlist(s watchlist.State, name string) bool {
	for _, l := range s.Watchlists {
		if l.Name == name {
			return true
		}
	}
	return false
}

func runWatchlistRemove(cmd *cobra.Command, args []string) error {
	name, symbol := args[0], args[1]
	return initialized(cmd, func(ctx context.Context, c *components) error {
		if err := c.manager.RemoveEntry(ctx, name, symbol); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", symbol, name)
		return nil
	})
}

func runWatchlistDrop(cmd *cobra.Command, args []string) error {
	name := args[0]
	return initialized(cmd, func(ctx context.Context, c *components) error {
		if !hasWatchlist(c.manager.Snapshot(), name) {
			return core.WrapError(core.ErrWatchlistNotFound, fmt.Errorf("%s", name))
		}
		if err := c.manager.RemoveWatchlist(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted watchlist %s\n", name)
		return nil
	})
}
