package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/willjrcristo/revendas-billing/internal/config"
	"github.com/willjrcristo/revendas-billing/internal/database"
)

// @title           API de Cobrança das Revendas
// @version         1.0
// @description     Assinaturas recorrentes com cobrança PIX, lembretes por WhatsApp e suspensão automática.
// @termsOfService  http://swagger.io/terms/
//
// @contact.name   Will Cristo
// @contact.url    https://linkedin.com/in/willjrcristo
// @contact.email  willjrcristo@gmail.com
//
// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html
//
// @host      localhost:8080
// @BasePath  /
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Erro fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "revendas-billing",
		Short:         "Motor de cobrança recorrente das revendas (PIX + WhatsApp)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "arquivo .env opcional")

	loadConfig := func() (*config.Config, error) {
		return config.Load(envFile)
	}

	root.AddCommand(newServeCmd(loadConfig), newMigrateCmd(loadConfig), newSweepCmd(loadConfig))
	return root
}

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sobe a API HTTP, o agendador e o despachante de notificações",
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.Info("🚀 Iniciando a API de cobrança...")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func newMigrateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica ou desfaz migrações do banco",
	}

	run := func(fn func(cfg *config.Config) error) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return fn(cfg)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica todas as migrações pendentes",
			RunE: run(func(cfg *config.Config) error {
				db, err := database.Open(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.Migrate(db); err != nil {
					return err
				}
				slog.Info("Migrações aplicadas", "path", cfg.DatabasePath)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Desfaz a última migração",
			RunE: run(func(cfg *config.Config) error {
				db, err := database.Open(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.Rollback(db); err != nil {
					return err
				}
				slog.Info("Última migração desfeita", "path", cfg.DatabasePath)
				return nil
			}),
		},
	)
	return cmd
}

func newSweepCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Executa uma varredura de vencimentos e imprime o relatório",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.scheduler.Run(context.Background(), force)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignora o marcador diário (os avisos continuam sem duplicar)")
	return cmd
}
