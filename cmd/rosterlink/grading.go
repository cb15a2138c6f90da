package main

import (
	"github.com/spf13/cobra"

	"rosterlink/internal/exporter"
)

func newGradingCmd(c *cli) *cobra.Command {
	var (
		course  string
		refresh bool
		out     string
	)

	cmd := &cobra.Command{
		Use:   "grading",
		Short: "List graded discussion posts that still need a grade",
		Long: `Correlates a course's discussion posts with assignment submissions and
reports, per graded topic, which students still need a grade and how often
each teacher replied.`,
		Example: `  rosterlink grading --course 12345 --out grading.xlsx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			env, err := a.Services.Grading.Correlate(cmd.Context(), course, refresh)
			if err != nil {
				return err
			}
			return c.writeResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, env, exporter.GradingTables(env.Data, env.Notes))
		},
	}

	cmd.Flags().StringVar(&course, "course", "", "Canvas course id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cached Canvas data")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.json, .csv or .xlsx); JSON to stdout when empty")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}
