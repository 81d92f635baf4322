package main

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"sceneforge/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP status API over the projects directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.ServeAddr
			}

			handler := api.NewHandler(cfg.ProjectsRoot)
			router := api.NewRouter(handler, api.RouterConfig{
				CorsAllowedOrigins: cfg.CorsAllowedOrigins,
			})

			log.Printf("[Serve] Status API listening on %s (root=%s)", addr, cfg.ProjectsRoot)
			return http.ListenAndServe(addr, router)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SERVE_ADDR)")
	return cmd
}
