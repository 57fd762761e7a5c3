package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csheet/internal/catalog"
	"csheet/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check folders, helper binaries, and the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			lines := renderSectionHeader("Folders", colorize)
			results := preflight.RunAll(cfg)
			lines = append(lines, preflightLines(results, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Catalog", colorize)...)
			err = ctx.withCatalog(func(store *catalog.Store) error {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				lines = append(lines, renderStatusLine("Database", statusInfo, store.Path(), colorize))
				lines = append(lines, renderStatusLine("Shots", statusInfo, fmt.Sprintf("%d cached", count), colorize))
				return nil
			})
			if err != nil {
				lines = append(lines, renderStatusLine("Database", statusError, err.Error(), colorize))
			}

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if len(preflight.Failed(results)) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(preflight.Failed(results)))
			}
			return nil
		},
	}
}
