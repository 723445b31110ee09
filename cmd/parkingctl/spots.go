package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"parking/internal/domain"
	"parking/internal/modules/catalog"
	"parking/internal/repository"
)

func newSpotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spots",
		Short: "Inspect the spot catalog",
	}
	cmd.AddCommand(newSpotsListCmd())
	return cmd
}

func newSpotsListCmd() *cobra.Command {
	var (
		row         string
		chargerOnly bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List spots in catalog order",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var f domain.SpotFilter
			if row != "" {
				f.Row = &row
			}
			if chargerOnly {
				f.HasCharger = &chargerOnly
			}

			svc := catalog.NewService(repository.NewSpotRepository(db), repository.NewUserRepository(db))
			spots, err := svc.ListSpots(context.Background(), f)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tCHARGER\tACTIVE")
			for _, s := range spots {
				fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", s.ID, s.Code, s.HasCharger, s.Active)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&row, "row", "", "only this row (A-F)")
	c.Flags().BoolVar(&chargerOnly, "charger", false, "only spots with a charger")
	return c
}
