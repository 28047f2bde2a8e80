package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "farmauth",
		Short:         "Cliente de sesión para la API de la granja (/auth/*)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", a.configPath, "Archivo YAML de configuración (env FARMAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", a.envFile, "Archivo .env a cargar antes de la config")
	root.PersistentFlags().StringVar(&a.out, "out", a.out, "Formato de salida: json|text")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Volcar métricas en formato texto Prometheus al terminar")

	root.AddCommand(
		loginCmd(a),
		meCmd(a),
		refreshCmd(a),
		logoutCmd(a),
		recoverCmd(a),
		resetPasswordCmd(a),
		changePasswordCmd(a),
		roleCmd(a),
		purgeLegacyCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	root := newRootCmd(a)
	if err := root.ExecuteContext(ctx); err != nil {
		// PersistentPostRun no corre si RunE falla
		a.teardown()
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}
