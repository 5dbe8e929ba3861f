// reconcile-payments asks Flow for the status of reports stuck in pending_payment
// and applies it the same way the webhook would. With -revive-dead it also puts
// DEAD generation jobs back in the outbox.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/payments"
)

func main() {
	olderThan := flag.Duration("older-than", 30*time.Minute, "Only reports created before now minus this duration")
	limit := flag.Int("limit", 100, "Maximum reports to check")
	reviveDead := flag.Bool("revive-dead", false, "Make DEAD generation jobs due again (status FAILED, attempts reset)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	settings := config.LoadFlowSettings()
	client, err := flow.NewClient(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flow client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	store := models.NewStore(db)
	svc := payments.NewService(store, client, settings, nil, logger)
	reconciler := &payments.Reconciler{Service: svc, Pending: store}

	summary, err := reconciler.Run(ctx, *olderThan, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("checked=%d paid=%d rejected=%d pending=%d failed=%d\n",
		summary.Checked, summary.Paid, summary.Rejected, summary.Pending, summary.Failed)

	if *reviveDead {
		n, err := store.ReviveDeadJobs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "revive dead jobs: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("revived %d dead generation jobs\n", n)
	}
	if summary.Failed > 0 {
		os.Exit(2)
	}
}
