package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joy095/hallbooking/config/db"
	"github.com/joy095/hallbooking/controllers/notification_controller"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/tenant"
	"github.com/joy095/hallbooking/utils/jwt_parse"
)

var (
	dispatchLimit  int
	pastTenants    []string
	tokenCaretaker string
	tokenTTL       time.Duration
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver one batch of queued notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.dispatcher.DispatchBatch(cmd.Context(), dispatchLimit)
		if err != nil {
			return err
		}
		logger.InfoLogger.WithFields(logrus.Fields{
			"claimed":   summary.Claimed,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"exhausted": summary.Exhausted,
		}).Info("Notification batch dispatched")

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(cmd.Context(), pool)
	},
}

var completePastCmd = &cobra.Command{
	Use:   "complete-past",
	Short: "Mark finished active bookings as completed",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenants := pastTenants
		if len(tenants) == 0 && cfg.DefaultTenantID != "" {
			tenants = []string{cfg.DefaultTenantID}
		}
		if len(tenants) == 0 {
			return fmt.Errorf("no tenant given and DEFAULT_TENANT_ID is unset")
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		current := tenant.NewHolder("")
		unsubscribe := current.Subscribe(func(previous, next string) {
			logger.InfoLogger.WithFields(logrus.Fields{"from": previous, "to": next}).Info("Switched tenant")
		})
		defer unsubscribe()

		var total int64
		for _, id := range tenants {
			current.SetCurrent(id)
			n, err := a.bookings.CompletePast(tenant.WithTenant(cmd.Context(), current.GetCurrent()))
			if err != nil {
				return fmt.Errorf("complete past bookings for tenant %s: %w", id, err)
			}
			total += n
		}
		logger.InfoLogger.Infof("Completed %d past bookings across %d tenants", total, len(tenants))
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Issue a caretaker bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(tokenCaretaker)
		if err != nil {
			return fmt.Errorf("invalid caretaker id: %w", err)
		}
		tok, err := jwt_parse.IssueCaretakerToken([]byte(cfg.JWTSecret), id, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchLimit, "limit", notification_controller.DefaultBatchSize,
		fmt.Sprintf("events to claim, at most %d", notification_controller.MaxBatchSize))

	completePastCmd.Flags().StringSliceVar(&pastTenants, "tenant", nil, "tenant to sweep, repeatable (default DEFAULT_TENANT_ID)")

	issueTokenCmd.Flags().StringVar(&tokenCaretaker, "caretaker", "", "caretaker id")
	issueTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	_ = issueTokenCmd.MarkFlagRequired("caretaker")
}
