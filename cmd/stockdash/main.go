package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "stockdash",
	Short: "stockdash - stock watchlist dashboard",
	Long: `stockdash keeps named stock watchlists in sync with the dashboard backend,
refreshes their prices and serves them, together with market data, over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "sign in as this user (overrides identity.user_id)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
