package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/DRSN-tech/marketplace/internal/app"
	config "github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/spf13/cobra"
)

//	@title			Marketplace Storefront API
//	@version		1.0
//	@description	Каталог товаров, фильтрация выдачи и корзина витрины.
//	@host			localhost:8080
//	@BasePath		/api/v1
func main() {
	log := logger.NewSlogLogger()

	if err := newRootCmd(log).Execute(); err != nil {
		log.Errorf(err, "command failed")
		os.Exit(1)
	}
}

func newRootCmd(log logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketplace",
		Short:         "Marketplace storefront service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(log), newMigrateCmd(log), newImportCmd(log), newReindexCmd(log))
	return root
}

func newServeCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP and gRPC servers and the outbox relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}

			application, err := app.NewApp(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return application.Run(ctx)
		},
	}
}

func newMigrateCmd(log logger.Logger) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadDB(log)
			if err != nil {
				return err
			}

			return app.Migrate(cfg, down, log)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back the given number of migrations instead")

	return cmd
}

func newImportCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Import products, categories and images from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := app.Import(ctx, cfg, args[0], log)
			if err != nil {
				return err
			}

			cmd.Printf("created: %d, updated: %d, unchanged: %d\n", res.Created, res.Updated, res.Unchanged)
			return nil
		},
	}
}

func newReindexCmd(log logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the semantic search index for the whole catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n, err := app.Reindex(ctx, cfg, log)
			if err != nil {
				return err
			}

			cmd.Printf("indexed chunks: %d\n", n)
			return nil
		},
	}
}
