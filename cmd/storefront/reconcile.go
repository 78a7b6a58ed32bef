package main

import (
	"encoding/json"
	"errors"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Pull one checkout session from the processor and settle it",
	Long: `Fetch the processor's view of a checkout session and run it through
settlement. Safe to repeat: a session that already settled reports
already_settled and changes nothing.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().String("session-id", "", "Processor checkout session id")
	_ = reconcileCmd.MarkFlagRequired("session-id")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ref, _ := cmd.Flags().GetString("session-id")
	if ref == "" {
		return errors.New("--session-id is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)

	repo, err := openRepository(cfg, false)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := cmd.Context()
	conf, err := newProcessor(cfg, lg).RetrieveSession(ctx, ref)
	if err != nil {
		return err
	}
	res, err := settlement.NewReconciler(repo, lg).Settle(ctx, conf)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"outcome": res.Outcome,
		"order":   res.Order,
	})
}
