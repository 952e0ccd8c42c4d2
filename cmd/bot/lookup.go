package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <song name...>",
	Short: "Search a song and print the reply the bot would send",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		svc := newPipeline(cmd.Context(), cfg, logger)
		reply, err := svc.Lookup(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
