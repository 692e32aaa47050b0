package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	checkoutcontext "github.com/yourorg/checkout-orchestrator/internal/context"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "checkout",
		Short: "Checkout payment orchestration",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")
	root.AddCommand(newServeCmd(&configPath), newInspectCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModule(*configPath),
				httpModule,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newInspectCmd(configPath *string) *cobra.Command {
	var live bool
	var language string
	cmd := &cobra.Command{
		Use:   "inspect <paymentId>",
		Short: "Open a checkout for a payment and print what the payer would see",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var orch *orchestrator.Orchestrator
			app := fx.New(
				coreModule(*configPath),
				fx.NopLogger,
				fx.Populate(&orch),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("inspect failed: %w", err)
			}
			defer func() { _ = app.Stop(context.Background()) }()

			return inspect(ctx, orch, checkoutcontext.OpenRequest{
				PaymentID: args[0],
				Live:      live,
				Language:  language,
			}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "use the live backend")
	cmd.Flags().StringVar(&language, "language", "", "display language (en, de, et)")
	return cmd
}

func inspect(ctx context.Context, orch *orchestrator.Orchestrator, req checkoutcontext.OpenRequest, out io.Writer) error {
	sess, err := orch.Open(ctx, req, orchestrator.Callbacks{})
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Initialize(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sess.Snapshot())
}
