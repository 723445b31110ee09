package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parking/internal/modules/expiry"
	"parking/internal/modules/notification"
	"parking/internal/modules/reservation"
	"parking/internal/pkg/clock"
	"parking/internal/repository"
)

func newExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Run the expiry sweep now (expire today's pending reservations)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			clk := clock.System{}
			userRepo := repository.NewUserRepository(db)
			notifications := notification.NewService(repository.NewNotificationRepository(db), clk)
			svc := reservation.NewService(
				userRepo,
				repository.NewSpotRepository(db),
				repository.NewReservationRepository(db),
				notifications,
				nil,
				clk,
				reservation.NewPolicy(cfg.Site, cfg.ReleaseCutoff.Hour, cfg.ReleaseCutoff.Minute),
			)

			scheduler := expiry.NewScheduler(svc, clk, cfg.Site, cfg.ExpiryAt.Hour, cfg.ExpiryAt.Minute)
			res, err := scheduler.RunNow(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "expired=%d failed=%d\n", res.ExpiredCount, res.FailedCount)
			return nil
		},
	}
}
