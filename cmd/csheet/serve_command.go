package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csheet/internal/catalog"
	"csheet/internal/preflight"
	"csheet/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the media directory as a contact sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := ctx.mediaDir(); err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.Bind = bind
			}
			if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight: %s %s", failed[0].Name, failed[0].Detail)
			}

			logger := ctx.loggerFor()
			return ctx.withCatalog(func(store *catalog.Store) error {
				srv, err := server.New(cfg, store, logger)
				if err != nil {
					return err
				}
				runCtx := cmd.Context()
				if err := srv.Start(runCtx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving %q on http://%s\n", srv.Title(), srv.Addr())
				<-runCtx.Done()
				srv.Stop()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides paths.bind)")
	return cmd
}
