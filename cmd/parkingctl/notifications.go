package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"parking/internal/domain"
	"parking/internal/modules/notification"
	"parking/internal/pkg/clock"
	"parking/internal/repository"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect and manage the notification intent queue",
	}
	cmd.AddCommand(newNotificationsListCmd())
	cmd.AddCommand(newNotificationsRetryCmd())
	cmd.AddCommand(newNotificationsPurgeCmd())
	return cmd
}

func newNotificationsListCmd() *cobra.Command {
	var (
		status string
		page   int
		limit  int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List notification intents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			svc := notification.NewService(repository.NewNotificationRepository(db), clock.System{})
			list, total, err := svc.List(context.Background(), domain.DeliveryStatus(status), page, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRESERVATION\tKIND\tSTATUS\tATTEMPTS\tRECIPIENT\tCREATED")
			for _, n := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					n.ID, n.ReservationID, n.Kind, n.Status, n.Attempts, n.Recipient, n.CreatedAt.Format(time.RFC3339))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "total=%d page=%d\n", total, page)
			return nil
		},
	}
	c.Flags().StringVar(&status, "status", "", "filter by status (pending, sent, failed)")
	c.Flags().IntVar(&page, "page", 1, "page number")
	c.Flags().IntVar(&limit, "limit", 20, "page size (max 100)")
	return c
}

func newNotificationsRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a failed notification back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid notification id %q: %w", args[0], err)
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			svc := notification.NewService(repository.NewNotificationRepository(db), clock.System{})
			n, err := svc.Retry(context.Background(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "notification %s is %s\n", n.ID, n.Status)
			return nil
		},
	}
}

func newNotificationsPurgeCmd() *cobra.Command {
	var days int

	c := &cobra.Command{
		Use:   "purge",
		Short: "Delete sent notifications older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			svc := notification.NewService(repository.NewNotificationRepository(db), clock.System{})
			deleted, err := svc.Purge(context.Background(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "purged=%d\n", deleted)
			return nil
		},
	}
	c.Flags().IntVar(&days, "days", 30, "keep sent notifications for this many days")
	return c
}
