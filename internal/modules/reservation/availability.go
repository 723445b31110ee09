package reservation

import (
	"context"
	"sort"
	"time"

	"parking/internal/domain"
)

type heldSpotsReader interface {
	HeldSpotIDs(ctx context.Context, start, end time.Time) ([]int64, error)
}

// AvailabilityIndex subtracts held reservations from the active catalog.
type AvailabilityIndex struct {
	spots SpotCatalog
}

func NewAvailabilityIndex(spots SpotCatalog) *AvailabilityIndex {
	return &AvailabilityIndex{spots: spots}
}

// Candidates returns the active spots satisfying the charger requirement in
// allocation order.
func (a *AvailabilityIndex) Candidates(ctx context.Context, requireCharger bool) ([]domain.Spot, error) {
	active := true
	f := domain.SpotFilter{Active: &active}
	if requireCharger {
		f.HasCharger = &requireCharger
	}

	spots, err := a.spots.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sortSpots(spots)
	return spots, nil
}

// Free returns the candidates with no pending or confirmed reservation
// intersecting [start, end], minus excluded.
func (a *AvailabilityIndex) Free(ctx context.Context, held heldSpotsReader, start, end time.Time, requireCharger bool, excluded map[int64]bool) ([]domain.Spot, error) {
	candidates, err := a.Candidates(ctx, requireCharger)
	if err != nil {
		return nil, err
	}
	ids, err := held.HeldSpotIDs(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return freeSpots(candidates, ids, excluded), nil
}

// freeSpots keeps the order of candidates.
func freeSpots(candidates []domain.Spot, held []int64, excluded map[int64]bool) []domain.Spot {
	taken := make(map[int64]struct{}, len(held))
	for _, id := range held {
		taken[id] = struct{}{}
	}

	out := make([]domain.Spot, 0, len(candidates))
	for _, s := range candidates {
		if _, ok := taken[s.ID]; ok {
			continue
		}
		if excluded[s.ID] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// sortSpots orders by row then number.
func sortSpots(spots []domain.Spot) {
	sort.SliceStable(spots, func(i, j int) bool {
		if spots[i].Row != spots[j].Row {
			return spots[i].Row < spots[j].Row
		}
		return spots[i].Number < spots[j].Number
	})
}
