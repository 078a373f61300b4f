package main

import (
	"github.com/spf13/cobra"
	"github.com/vango-dev/bindery/internal/scenario"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario.yaml>",
		Short: "Validate a scenario without running it",
		Long: `Parse a scenario file and validate its declarations and steps.

Unknown fields, unknown properties, bad rule expressions and bad validate
tags are reported with their line in the file.

Examples:
  bindery check signup.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			success(w, "%s is valid", args[0])
			info(w, "%d properties, %d rules, %d groups, %d steps",
				len(sc.Properties), len(sc.Rules), len(sc.Groups), len(sc.Steps))
			return nil
		},
	}
}
