package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icpmtech/Open-Telemetry-Solutions/startup"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o startup.Overrides

	root := &cobra.Command{
		Use:   "testotel",
		Short: "Traced web site exporting to an OpenTelemetry collector",
		Long: `testotel serves a small MVC site whose requests are traced and exported
over OTLP to a collector (default http://localhost:4317).

Example usage:
  testotel serve                              # Production pipeline on :5000
  testotel serve --environment Development    # developer exception page, no HSTS
  testotel pipeline --environment Staging     # print the composed stages`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", "", "YAML settings file")
	root.PersistentFlags().StringVarP(&o.Environment, "environment", "e", "", "hosting environment (overrides APP_ENVIRONMENT)")
	root.PersistentFlags().StringVar(&o.URLs, "urls", "", "HTTP listen address (overrides HTTP_ADDR)")
	root.PersistentFlags().IntVar(&o.HTTPSPort, "https-port", 0, "port HTTP requests are redirected to")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Compose the pipeline and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return startup.ConfigureAndRun(cmd.Context(), o)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "pipeline",
		Short: "Print the middleware stages for the configured environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printPipeline(cmd.Context(), cmd, o)
		},
	})

	return root
}

func printPipeline(ctx context.Context, cmd *cobra.Command, o startup.Overrides) error {
	cfg, err := startup.LoadConfig(o)
	if err != nil {
		return err
	}
	b := startup.NewBuilder(cfg)
	if err := startup.RegisterSite(b); err != nil {
		return err
	}
	app, err := b.Build(ctx)
	if err != nil {
		return err
	}
	defer app.Shutdown(context.Background())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "environment: %s\n", cfg.Host.Environment)
	for i, name := range app.Pipeline() {
		fmt.Fprintf(out, "%2d. %s\n", i+1, name)
	}
	s := app.TracingSettings()
	fmt.Fprintf(out, "service: %s\nexporter: %s\nsources: %v\n", s.ServiceName, s.Target, s.Sources)
	return nil
}
