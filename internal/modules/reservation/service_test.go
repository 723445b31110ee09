package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parking/internal/database"
	"parking/internal/domain"
	"parking/internal/modules/notification"
	"parking/internal/pkg/clock"
	"parking/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Monday 2026-10-12, 09:00 site time.
var monday = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	svc        *Service
	clock      *clock.Fixed
	users      *repository.UserRepository
	spots      *repository.SpotRepository
	res        *repository.ReservationRepository
	notifs     *notification.Service
	employee   *domain.User
	manager    *domain.User
	secretary  *domain.User
	spotByCode map[string]*domain.Spot
}

func day(s string) time.Time {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:         db,
		clock:      clock.NewFixed(monday),
		users:      repository.NewUserRepository(db),
		spots:      repository.NewSpotRepository(db),
		res:        repository.NewReservationRepository(db),
		spotByCode: map[string]*domain.Spot{},
	}
	f.notifs = notification.NewService(repository.NewNotificationRepository(db), f.clock)

	ctx := context.Background()
	f.employee = f.addUser(t, "emma@example.com", domain.RoleEmployee, true)
	f.manager = f.addUser(t, "marc@example.com", domain.RoleManager, true)
	f.secretary = f.addUser(t, "sofia@example.com", domain.RoleSecretary, true)

	for _, s := range []struct {
		row     string
		number  int
		charger bool
	}{
		{"A", 1, true},
		{"A", 2, true},
		{"B", 1, false},
		{"B", 2, false},
	} {
		sp := &domain.Spot{Code: domain.SpotCode(s.row, s.number), Row: s.row, Number: s.number, HasCharger: s.charger, Active: true}
		require.NoError(t, f.spots.Create(ctx, sp))
		f.spotByCode[sp.Code] = sp
	}

	f.svc = NewService(f.users, f.spots, f.res, f.notifs, nil, f.clock, NewPolicy(time.UTC, 11, 0))
	return f
}

// usePolicy rebuilds the service with p.
func (f *fixture) usePolicy(p Policy) {
	f.svc = NewService(f.users, f.spots, f.res, f.notifs, nil, f.clock, p)
}

func loadParis(t *testing.T) *time.Location {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return paris
}

func (f *fixture) countHolding(t *testing.T, code string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).
		Where("spot_id = ? AND status IN ?", f.spotByCode[code].ID, domain.HoldingStatuses).
		Count(&n).Error)
	return n
}

func spotCodes(spots []domain.Spot) []string {
	out := make([]string, 0, len(spots))
	for _, sp := range spots {
		out = append(out, sp.Code)
	}
	return out
}

func (f *fixture) addUser(t *testing.T, email string, role domain.UserRole, active bool) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "x", Role: role, Active: active}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) spotID(code string) *int64 {
	id := f.spotByCode[code].ID
	return &id
}

func (f *fixture) create(t *testing.T, user *domain.User, start, end string, spot string) *domain.Reservation {
	t.Helper()
	in := CreateInput{UserID: user.ID, StartDate: day(start), EndDate: day(end)}
	if spot != "" {
		in.SpotID = f.spotID(spot)
	}
	res, err := f.svc.CreateReservation(context.Background(), in)
	require.NoError(t, err)
	return res
}

// assertDisjoint checks that holding reservations never overlap per spot.
func assertDisjoint(t *testing.T, f *fixture) {
	t.Helper()
	var rows []domain.Reservation
	require.NoError(t, f.db.Where("status IN ?", domain.HoldingStatuses).Find(&rows).Error)

	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if rows[i].SpotID != rows[j].SpotID {
				continue
			}
			assert.False(t, rows[i].Overlaps(rows[j].StartDate, rows[j].EndDate),
				"reservations %s and %s overlap on spot %d", rows[i].ID, rows[j].ID, rows[i].SpotID)
		}
	}
}

func TestCreateReservation_AutoAssignsInRowNumberOrder(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, f.employee, "2026-10-13", "2026-10-14", "")
	second := f.create(t, f.manager, "2026-10-14", "2026-10-14", "")

	assert.Equal(t, f.spotByCode["A01"].ID, first.SpotID)
	assert.Equal(t, f.spotByCode["A02"].ID, second.SpotID)
	assert.Equal(t, domain.ReservationPending, first.Status)

	h, err := f.res.GetHistory(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, h.Status)

	intents, err := f.notifs.ListByReservation(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, domain.NotifConfirmation, intents[0].Kind)
	assert.Equal(t, "emma@example.com", intents[0].Recipient)

	assertDisjoint(t, f)
}

func TestCreateReservation_RejectsOverlapOnRequestedSpot(t *testing.T) {
	f := newFixture(t)
	f.create(t, f.employee, "2026-10-13", "2026-10-15", "B01")

	_, err := f.svc.CreateReservation(context.Background(), CreateInput{
		UserID: f.manager.ID, StartDate: day("2026-10-15"), EndDate: day("2026-10-16"), SpotID: f.spotID("B01"),
	})
	assert.ErrorIs(t, err, ErrSpotUnavailable)

	// Adjacent interval is free.
	f.create(t, f.manager, "2026-10-16", "2026-10-16", "B01")
	assertDisjoint(t, f)
}

func TestCreateReservation_DatesInOtherZones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.employee, "2026-10-13", "2026-10-13", "B02")

	west := time.FixedZone("UTC-2", -2*3600)
	east := time.FixedZone("UTC+9", 9*3600)
	tuesdayWest := time.Date(2026, 10, 13, 0, 0, 0, 0, west)

	_, err := f.svc.CreateReservation(ctx, CreateInput{
		UserID: f.manager.ID, StartDate: tuesdayWest, EndDate: tuesdayWest, SpotID: f.spotID("B02"),
	})
	assert.ErrorIs(t, err, ErrSpotUnavailable)
	assert.Equal(t, int64(1), f.countHolding(t, "B02"))

	avail, err := f.svc.CheckAvailability(ctx, tuesdayWest, tuesdayWest, false)
	require.NoError(t, err)
	assert.NotContains(t, spotCodes(avail.Spots), "B02")
	assert.Equal(t, 3, avail.Total)

	wednesdayEast := time.Date(2026, 10, 14, 0, 0, 0, 0, east)
	res, err := f.svc.CreateReservation(ctx, CreateInput{
		UserID: f.manager.ID, StartDate: wednesdayEast, EndDate: wednesdayEast, SpotID: f.spotID("B02"),
	})
	require.NoError(t, err)
	assert.Equal(t, day("2026-10-14"), res.StartDate)
	assert.Equal(t, day("2026-10-14"), res.EndDate)

	mine, err := f.svc.ListReservations(ctx, f.employee.ID, domain.ReservationFilter{From: &tuesdayWest, To: &tuesdayWest})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assertDisjoint(t, f)
}

func TestCreateReservation_NoFreeSpot(t *testing.T) {
	f := newFixture(t)
	for _, u := range []*domain.User{f.employee, f.manager, f.secretary} {
		f.create(t, u, "2026-10-13", "2026-10-13", "")
	}
	extra := f.addUser(t, "eli@example.com", domain.RoleEmployee, true)
	f.create(t, extra, "2026-10-13", "2026-10-13", "")

	late := f.addUser(t, "lou@example.com", domain.RoleEmployee, true)
	_, err := f.svc.CreateReservation(context.Background(), CreateInput{
		UserID: late.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13"),
	})
	assert.ErrorIs(t, err, ErrSpotUnavailable)
	assertDisjoint(t, f)
}

func TestCreateReservation_PolicyErrors(t *testing.T) {
	f := newFixture(t)
	inactive := f.addUser(t, "gone@example.com", domain.RoleEmployee, false)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"unknown user", CreateInput{UserID: 9999, StartDate: day("2026-10-13"), EndDate: day("2026-10-13")}, ErrUserNotFound},
		{"inactive user", CreateInput{UserID: inactive.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13")}, ErrInactiveUser},
		{"end before start", CreateInput{UserID: f.employee.ID, StartDate: day("2026-10-14"), EndDate: day("2026-10-13")}, ErrInvalidRange},
		{"past date", CreateInput{UserID: f.employee.ID, StartDate: day("2026-10-11"), EndDate: day("2026-10-13")}, ErrPastDate},
		{"too long", CreateInput{UserID: f.employee.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-18")}, ErrDurationExceeded},
		{"unknown spot", CreateInput{UserID: f.employee.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13"), SpotID: new(int64)}, ErrSpotNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateReservation_LookaheadBoundary(t *testing.T) {
	f := newFixture(t)

	// Five working days after Monday 12th is Monday 19th.
	f.create(t, f.employee, "2026-10-19", "2026-10-19", "")

	_, err := f.svc.CreateReservation(context.Background(), CreateInput{
		UserID: f.employee.ID, StartDate: day("2026-10-20"), EndDate: day("2026-10-20"),
	})
	assert.ErrorIs(t, err, ErrLookaheadExceeded)

	// Managers may book further out.
	f.create(t, f.manager, "2026-10-20", "2026-10-20", "")
}

func TestCreateReservation_ChargerMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateReservation(context.Background(), CreateInput{
		UserID: f.employee.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13"),
		SpotID: f.spotID("B01"), RequireCharger: true,
	})
	assert.ErrorIs(t, err, ErrChargerMismatch)

	avail, err := f.svc.CheckAvailability(context.Background(), day("2026-10-13"), day("2026-10-13"), true)
	require.NoError(t, err)
	require.NotEmpty(t, avail.Spots)
	for _, sp := range avail.Spots {
		assert.True(t, sp.HasCharger, "spot %s has no charger", sp.Code)
	}
	assert.Equal(t, avail.Total, avail.WithCharger)

	res := f.create(t, f.employee, "2026-10-13", "2026-10-13", "")
	assert.Equal(t, f.spotByCode["A01"].ID, res.SpotID)
}

func TestCreateReservation_SkipsInactiveSpots(t *testing.T) {
	f := newFixture(t)
	inactive := false
	_, err := f.spots.UpdateFlags(context.Background(), f.spotByCode["A01"].ID, &inactive, nil)
	require.NoError(t, err)

	res := f.create(t, f.employee, "2026-10-13", "2026-10-13", "")
	assert.Equal(t, f.spotByCode["A02"].ID, res.SpotID)

	_, err = f.svc.CreateReservation(context.Background(), CreateInput{
		UserID: f.manager.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13"), SpotID: f.spotID("A01"),
	})
	assert.ErrorIs(t, err, ErrSpotUnavailable)
}

func TestCreateReservation_ConcurrentRequestsForLastSpot(t *testing.T) {
	f := newFixture(t)
	other := f.addUser(t, "noa@example.com", domain.RoleEmployee, true)

	const workers = 2
	users := []*domain.User{f.employee, other}
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.CreateReservation(context.Background(), CreateInput{
				UserID: users[i].ID, StartDate: day("2026-10-14"), EndDate: day("2026-10-15"), SpotID: f.spotID("B02"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSpotUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, f.db.Model(&domain.Reservation{}).
		Where("spot_id = ? AND status IN ?", f.spotByCode["B02"].ID, domain.HoldingStatuses).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assertDisjoint(t, f)
}

func TestCancelReservation_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, f.employee, "2026-10-13", "2026-10-14", "")

	cancelled, err := f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	h, err := f.res.GetHistory(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, h.Status)

	intents, err := f.notifs.ListByReservation(ctx, res.ID)
	require.NoError(t, err)
	var found bool
	for _, n := range intents {
		if n.Kind == domain.NotifCancelled {
			found = true
			assert.Equal(t, domain.DeliveryPending, n.Status)
		}
	}
	assert.True(t, found, "cancellation intent missing")

	_, err = f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// The spot is free again.
	again := f.create(t, f.manager, "2026-10-13", "2026-10-13", "")
	assert.Equal(t, res.SpotID, again.SpotID)
}

func TestCancelReservation_ActorRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, f.employee, "2026-10-13", "2026-10-13", "")

	_, err := f.svc.CancelReservation(ctx, res.ID, f.manager.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CancelReservation(ctx, uuid.New(), f.employee.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := f.svc.CancelReservation(ctx, res.ID, f.secretary.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, out.Status)
}

func TestCancelReservation_ExpiredIsNotCancellable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, f.employee, "2026-10-12", "2026-10-12", "")

	f.clock.Set(monday.Add(3 * time.Hour))
	sweep, err := f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sweep.ExpiredCount)

	_, err = f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCheckIn_ExclusiveBySpotCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.create(t, f.employee, "2026-10-12", "2026-10-13", "A01")

	out, err := f.svc.CheckIn(ctx, CheckInTarget{SpotCode: "a01"}, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, out.Reservation.Status)
	require.NotNil(t, out.Reservation.CheckedInAt)
	assert.Equal(t, res.ID, out.CheckIn.ReservationID)

	_, err = f.svc.CheckIn(ctx, CheckInTarget{SpotCode: "A01"}, f.employee.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	_, err = f.svc.CheckIn(ctx, CheckInTarget{ReservationID: res.ID}, f.employee.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	n, err := f.res.CountCheckIns(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	h, err := f.res.GetHistory(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, h.Status)
	assert.NotNil(t, h.CheckInTime)
}

func TestCheckIn_SpotCodeOnlyFindsOwnReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.employee, "2026-10-12", "2026-10-12", "B01")

	_, err := f.svc.CheckIn(ctx, CheckInTarget{SpotCode: "B01"}, f.manager.ID)
	assert.ErrorIs(t, err, ErrNoActiveReservation)

	_, err = f.svc.CheckIn(ctx, CheckInTarget{SpotCode: "Z99"}, f.manager.ID)
	assert.ErrorIs(t, err, ErrSpotNotFound)

	out, err := f.svc.CheckIn(ctx, CheckInTarget{SpotCode: "B01"}, f.secretary.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, out.Reservation.Status)
	assert.Equal(t, f.secretary.ID, out.CheckIn.ActorID)
}

func TestCheckIn_ByReservationIDWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	future := f.create(t, f.employee, "2026-10-14", "2026-10-14", "")

	_, err := f.svc.CheckIn(ctx, CheckInTarget{ReservationID: future.ID}, f.employee.ID)
	assert.ErrorIs(t, err, ErrOutOfCheckInWindow)

	_, err = f.svc.CheckIn(ctx, CheckInTarget{ReservationID: future.ID}, f.manager.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	today := f.create(t, f.employee, "2026-10-12", "2026-10-12", "")
	_, err = f.svc.CancelReservation(ctx, today.ID, f.employee.ID)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, CheckInTarget{ReservationID: today.ID}, f.employee.ID)
	assert.ErrorIs(t, err, ErrOutOfCheckInWindow)

	_, err = f.svc.CheckIn(ctx, CheckInTarget{}, f.employee.ID)
	assert.ErrorIs(t, err, ErrInvalidCheckInRequest)
}

func TestRunExpirySweep_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.create(t, f.employee, "2026-10-12", "2026-10-13", "")
	checked := f.create(t, f.manager, "2026-10-12", "2026-10-12", "")
	later := f.create(t, f.secretary, "2026-10-13", "2026-10-13", "")

	_, err := f.svc.CheckIn(ctx, CheckInTarget{ReservationID: checked.ID}, f.manager.ID)
	require.NoError(t, err)

	f.clock.Set(monday.Add(2 * time.Hour))
	first, err := f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ExpiredCount)
	assert.Zero(t, first.FailedCount)

	second, err := f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.ExpiredCount)

	got, err := f.res.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, got.Status)
	assert.NotNil(t, got.ExpiredAt)

	h, err := f.res.GetHistory(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, h.Status)

	got, err = f.res.GetByID(ctx, checked.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, got.Status)

	got, err = f.res.GetByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, got.Status)

	intents, err := f.notifs.ListByReservation(ctx, stale.ID)
	require.NoError(t, err)
	kinds := map[domain.NotificationKind]int{}
	for _, n := range intents {
		kinds[n.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.NotifExpired])
}

func TestReleaseCutoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.employee, "2026-10-12", "2026-10-12", "A01")

	f.clock.Set(time.Date(2026, 10, 12, 11, 5, 0, 0, time.UTC))
	_, err := f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	require.NoError(t, err)

	avail, err := f.svc.CheckAvailability(ctx, day("2026-10-12"), day("2026-10-12"), false)
	require.NoError(t, err)
	assert.NotEmpty(t, avail.Spots)
	for _, sp := range avail.Spots {
		assert.NotEqual(t, "A01", sp.Code)
	}

	auto := f.create(t, f.manager, "2026-10-12", "2026-10-12", "")
	assert.NotEqual(t, f.spotByCode["A01"].ID, auto.SpotID)

	_, err = f.svc.CreateReservation(ctx, CreateInput{
		UserID: f.secretary.ID, StartDate: day("2026-10-12"), EndDate: day("2026-10-12"), SpotID: f.spotID("A01"),
	})
	assert.ErrorIs(t, err, ErrRecentlyReleased)

	// Tomorrow is unaffected.
	tomorrow := f.create(t, f.secretary, "2026-10-13", "2026-10-13", "A01")
	assert.Equal(t, f.spotByCode["A01"].ID, tomorrow.SpotID)
}

func TestReleaseCutoff_CancelledBeforeCutoffStaysBookable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.employee, "2026-10-12", "2026-10-12", "A01")
	f.clock.Set(time.Date(2026, 10, 12, 10, 59, 0, 0, time.UTC))
	_, err := f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 12, 11, 30, 0, 0, time.UTC))
	again := f.create(t, f.manager, "2026-10-12", "2026-10-12", "A01")
	assert.Equal(t, f.spotByCode["A01"].ID, again.SpotID)
}

func TestReleaseCutoff_SiteTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.usePolicy(NewPolicy(loadParis(t), 11, 0))

	// 10:00 in Paris.
	f.clock.Set(time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC))
	res := f.create(t, f.employee, "2026-10-12", "2026-10-12", "A01")

	// 11:05 in Paris, still before 11:00 UTC.
	f.clock.Set(time.Date(2026, 10, 12, 9, 5, 0, 0, time.UTC))
	_, err := f.svc.CancelReservation(ctx, res.ID, f.employee.ID)
	require.NoError(t, err)

	avail, err := f.svc.CheckAvailability(ctx, day("2026-10-12"), day("2026-10-12"), false)
	require.NoError(t, err)
	assert.NotContains(t, spotCodes(avail.Spots), "A01")

	_, err = f.svc.CreateReservation(ctx, CreateInput{
		UserID: f.secretary.ID, StartDate: day("2026-10-12"), EndDate: day("2026-10-12"), SpotID: f.spotID("A01"),
	})
	assert.ErrorIs(t, err, ErrRecentlyReleased)

	auto := f.create(t, f.manager, "2026-10-12", "2026-10-12", "")
	assert.Equal(t, f.spotByCode["A02"].ID, auto.SpotID)

	sweep, err := f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.ExpiredCount)
}

func TestReleaseCutoff_DaylightSavingChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.usePolicy(NewPolicy(loadParis(t), 11, 0))

	// Sunday 2026-10-25, Paris is back on UTC+1. 09:00 local.
	f.clock.Set(time.Date(2026, 10, 25, 8, 0, 0, 0, time.UTC))
	early := f.create(t, f.employee, "2026-10-25", "2026-10-25", "A01")
	late := f.create(t, f.manager, "2026-10-25", "2026-10-25", "A02")

	// 10:30 local, it would be 11:30 on summer time.
	f.clock.Set(time.Date(2026, 10, 25, 9, 30, 0, 0, time.UTC))
	_, err := f.svc.CancelReservation(ctx, early.ID, f.employee.ID)
	require.NoError(t, err)

	// 11:05 local.
	f.clock.Set(time.Date(2026, 10, 25, 10, 5, 0, 0, time.UTC))
	_, err = f.svc.CancelReservation(ctx, late.ID, f.manager.ID)
	require.NoError(t, err)

	// 11:30 local.
	f.clock.Set(time.Date(2026, 10, 25, 10, 30, 0, 0, time.UTC))
	avail, err := f.svc.CheckAvailability(ctx, day("2026-10-25"), day("2026-10-25"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A01"}, spotCodes(avail.Spots))

	rebooked := f.create(t, f.secretary, "2026-10-25", "2026-10-25", "A01")
	assert.Equal(t, f.spotByCode["A01"].ID, rebooked.SpotID)

	_, err = f.svc.CreateReservation(ctx, CreateInput{
		UserID: f.employee.ID, StartDate: day("2026-10-25"), EndDate: day("2026-10-25"), SpotID: f.spotID("A02"),
	})
	assert.ErrorIs(t, err, ErrRecentlyReleased)

	nextDay := f.create(t, f.manager, "2026-10-26", "2026-10-26", "B01")

	sweep, err := f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.ExpiredCount)

	// 00:30 local on Monday.
	f.clock.Set(time.Date(2026, 10, 25, 23, 30, 0, 0, time.UTC))
	sweep, err = f.svc.RunExpirySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.ExpiredCount)

	got, err := f.res.GetByID(ctx, nextDay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, got.Status)
}

type mockEmitter struct {
	mock.Mock
}

func (m *mockEmitter) Enqueue(ctx context.Context, reservationID uuid.UUID, recipient string, kind domain.NotificationKind) (*domain.NotificationIntent, error) {
	args := m.Called(ctx, reservationID, recipient, kind)
	n, _ := args.Get(0).(*domain.NotificationIntent)
	return n, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestCreateReservation_EmitterFailureStillCommits(t *testing.T) {
	f := newFixture(t)
	emitter := new(mockEmitter)
	emitter.On("Enqueue", mock.Anything, mock.Anything, "emma@example.com", domain.NotifConfirmation).
		Return(nil, errors.New("queue down")).Once()
	events := &recordingPublisher{}
	svc := NewService(f.users, f.spots, f.res, emitter, events, f.clock, NewPolicy(time.UTC, 11, 0))

	res, err := svc.CreateReservation(context.Background(), CreateInput{
		UserID: f.employee.ID, StartDate: day("2026-10-13"), EndDate: day("2026-10-13"),
	})
	require.NoError(t, err)

	stored, err := f.res.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, stored.Status)
	emitter.AssertExpectations(t)

	require.Len(t, events.events, 1)
	assert.Equal(t, EventCreated, events.events[0].Type)
	assert.Equal(t, "2026-10-13", events.events[0].StartDate)
}

func TestListReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, f.employee, "2026-10-13", "2026-10-13", "")
	b := f.create(t, f.employee, "2026-10-15", "2026-10-15", "")
	f.create(t, f.manager, "2026-10-14", "2026-10-14", "")
	_, err := f.svc.CancelReservation(ctx, a.ID, f.employee.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListReservations(ctx, f.employee.ID, domain.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID)

	pending, err := f.svc.ListReservations(ctx, f.employee.ID, domain.ReservationFilter{Status: domain.ReservationPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	_, _, err = f.svc.ListAllReservations(ctx, f.employee.ID, domain.ReservationFilter{}, 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	all, total, err := f.svc.ListAllReservations(ctx, f.secretary.ID, domain.ReservationFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 2)

	got, err := f.svc.GetReservation(ctx, b.ID, f.secretary.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	_, err = f.svc.GetReservation(ctx, b.ID, f.manager.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, f.employee, "2026-10-13", "2026-10-13", "")
	b := f.create(t, f.employee, "2026-10-15", "2026-10-15", "")
	f.create(t, f.manager, "2026-10-14", "2026-10-14", "")
	_, err := f.svc.CancelReservation(ctx, a.ID, f.employee.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListHistory(ctx, f.employee.ID, domain.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ReservationID)
	assert.Equal(t, a.ID, mine[1].ReservationID)
	assert.Equal(t, domain.ReservationCancelled, mine[1].Status)

	cancelled, err := f.svc.ListHistory(ctx, f.employee.ID, domain.ReservationFilter{Status: domain.ReservationCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, a.ID, cancelled[0].ReservationID)

	from := day("2026-10-14")
	later, err := f.svc.ListHistory(ctx, f.employee.ID, domain.ReservationFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, b.ID, later[0].ReservationID)

	_, _, err = f.svc.ListAllHistory(ctx, f.manager.ID, domain.ReservationFilter{}, 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	all, total, err := f.svc.ListAllHistory(ctx, f.secretary.ID, domain.ReservationFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 2)

	_, total, err = f.svc.ListAllHistory(ctx, f.secretary.ID, domain.ReservationFilter{UserID: &f.manager.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
