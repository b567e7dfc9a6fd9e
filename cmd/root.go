// Package cmd implements the CLI commands for linkwarden.
package cmd

import "github.com/spf13/cobra"

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "linkwarden",
	Short:         "linkwarden — a fast, concurrent link checker",
	SilenceErrors: true,
	SilenceUsage:  true,
	Long: `linkwarden extracts links from files, directories, and remote
documents, resolves them against a base URL or root directory, and checks
each one concurrently with per-host pacing, retries, and a persistent
cache.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a config file (CLI flags override it)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of linkwarden",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("linkwarden", Version)
		},
	})
}

// Execute runs the root command. It is the single entry point called by main.
func Execute() error {
	return rootCmd.Execute()
}
