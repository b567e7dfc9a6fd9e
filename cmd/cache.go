package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the persistent link cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear <path>",
		Short: "Delete the cache file at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("clear cache %q: %w", path, err)
			}
			fmt.Printf("Cache cleared: %s\n", path)
			return nil
		},
	}

	cacheCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(cacheCmd)
}
