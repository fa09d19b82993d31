package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"metergate/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check that the environment can sustain a pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// A missing tracking URI is itself a finding, not a reason to
			// skip the remaining checks.
			client, clientErr := ctx.registryClient()
			results := preflight.RunAll(cmd.Context(), cfg, client)
			if clientErr != nil {
				results = append(results, preflight.Result{
					Name:   "Model registry",
					Detail: clientErr.Error(),
				})
			}

			if jsonOut {
				type resultView struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail"`
				}
				views := make([]resultView, 0, len(results))
				for _, result := range results {
					views = append(views, resultView(result))
				}
				if err := writeJSON(cmd, views); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{result.Name, passFail(result.Passed, colorize), result.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			}

			if !preflight.AllPassed(results) {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit check results as JSON")
	return cmd
}
