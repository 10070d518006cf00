package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report clashes across the --existing routines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			routines, err := root.existingRoutines()
			if err != nil {
				return err
			}
			violations := routine.CheckRoutines(routines)
			for _, v := range violations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s [%s] %s\n", v.Kind, v.Day, strings.Join(v.SessionIDs, ","), v.Detail)
			}
			if len(violations) > 0 {
				return fmt.Errorf("%d violations found", len(violations))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no violations")
			return nil
		},
	}
}
