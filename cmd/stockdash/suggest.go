package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/stockdash/internal/directory"
	"github.com/spf13/cobra"
)

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Search the symbol directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 20, "maximum number of results (0 for all)")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *components) error {
		ctx := commandContext(cmd)

		dir, err := directory.NewLoader(c.cfg.Directory.Path, c.cfg.Directory.MarketKey, c.log.Named("directory")).Load(ctx)
		if err != nil {
			return err
		}
		c.manager.SetDirectory(dir)

		results := c.manager.SetInput(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No matching symbols.")
			return nil
		}
		if suggestLimit > 0 && len(results) > suggestLimit {
			results = results[:suggestLimit]
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tNAME\t")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t\n", r.Ticker, r.Name)
		}
		return w.Flush()
	})
}
