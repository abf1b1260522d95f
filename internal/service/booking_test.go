package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/slogdiscard"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/queue"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, ev queue.BookingEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newService(t *testing.T, store BookingStore) *BookingService {
	t.Helper()
	svc := NewBookingService(store, nil, slogdiscard.NewDiscardLogger())
	svc.now = func() time.Time { return time.Date(2030, 6, 1, 15, 0, 0, 0, time.UTC) }
	return svc
}

func uptr(v uint64) *uint64 { return &v }

func input(in, out string) BookingInput {
	return BookingInput{
		PropertyID: 1,
		GuestName:  "Sam Guest",
		GuestEmail: "sam@example.com",
		CheckIn:    day(in),
		CheckOut:   day(out),
		Guests:     2,
		Amount:     500,
	}
}

func TestCreateOrUpdate_Validation(t *testing.T) {
	t.Parallel()
	svc := newService(t, newStore(t))
	ctx := context.Background()

	tests := []struct {
		name      string
		mutate    func(*BookingInput)
		wantMsg   string
		wantField string
	}{
		{name: "inverted range", mutate: func(in *BookingInput) { in.CheckIn, in.CheckOut = in.CheckOut, in.CheckIn },
			wantMsg: MsgInvalidRange, wantField: "checkOut"},
		{name: "empty range", mutate: func(in *BookingInput) { in.CheckOut = in.CheckIn },
			wantMsg: MsgInvalidRange, wantField: "checkOut"},
		{name: "past check-in", mutate: func(in *BookingInput) { in.CheckIn = day("2030-05-31") },
			wantMsg: MsgPastCheckIn, wantField: "checkIn"},
		{name: "blank guest name", mutate: func(in *BookingInput) { in.GuestName = "  " },
			wantMsg: MsgMissingGuest, wantField: "guestName"},
		{name: "blank guest email", mutate: func(in *BookingInput) { in.GuestEmail = "" },
			wantMsg: MsgMissingGuest, wantField: "guestEmail"},
		{name: "no guests", mutate: func(in *BookingInput) { in.Guests = 0 }, wantField: "guests"},
		{name: "negative amount", mutate: func(in *BookingInput) { in.Amount = -1 }, wantField: "amount"},
		{name: "over capacity", mutate: func(in *BookingInput) { in.Guests = 9 }, wantMsg: MsgTooManyGuests, wantField: "guests"},
		{name: "not public", mutate: func(in *BookingInput) { in.PropertyID = 2; in.Guests = 1 }, wantMsg: MsgNotBookable, wantField: "propertyId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input("2030-07-01", "2030-07-05")
			tt.mutate(&in)
			_, _, err := svc.CreateOrUpdate(ctx, in)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, ve.Message)
			}
			assert.Contains(t, ve.Fields, tt.wantField)
		})
	}
}

func TestCreateOrUpdate_TodayIsNotPast(t *testing.T) {
	t.Parallel()
	svc := newService(t, newStore(t))
	_, created, err := svc.CreateOrUpdate(context.Background(), input("2030-06-01", "2030-06-03"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateOrUpdate_UnknownProperty(t *testing.T) {
	t.Parallel()
	svc := newService(t, newStore(t))
	in := input("2030-07-01", "2030-07-05")
	in.PropertyID = 99
	_, _, err := svc.CreateOrUpdate(context.Background(), in)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateOrUpdate_ConflictListsRanges(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 1, PropertyID: 1, CheckIn: day("2030-07-10"), CheckOut: day("2030-07-15"),
		Status: model.BookingConfirmed})
	svc := newService(t, store)

	_, _, err := svc.CreateOrUpdate(context.Background(), input("2030-07-14", "2030-07-18"))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, MsgUnavailable, ce.Error())
	assert.Equal(t, []model.DateRange{rng("2030-07-10", "2030-07-15")}, ce.BookedDates)

	b, created, err := svc.CreateOrUpdate(context.Background(), input("2030-07-15", "2030-07-18"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.BookingPending, b.Status)
}

func TestCreateOrUpdate_BackToBackBothSucceed(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()

	_, _, err := svc.CreateOrUpdate(ctx, input("2030-07-01", "2030-07-05"))
	require.NoError(t, err)
	_, _, err = svc.CreateOrUpdate(ctx, input("2030-07-05", "2030-07-09"))
	require.NoError(t, err)

	active, err := store.ActiveBookings(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestCreateOrUpdate_OneActiveBookingPerUser(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()

	first := input("2030-07-01", "2030-07-05")
	first.UserID = uptr(4)
	b1, created, err := svc.CreateOrUpdate(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	// Overlaps the user's own booking, which must not count as a conflict.
	second := input("2030-07-03", "2030-07-08")
	second.UserID = uptr(4)
	second.Guests = 3
	b2, created, err := svc.CreateOrUpdate(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, b1.ID, b2.ID)

	mine, err := store.ListBookings(ctx, model.BookingFilter{UserID: 4, PropertyID: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, day("2030-07-03"), mine[0].CheckIn)
	assert.Equal(t, day("2030-07-08"), mine[0].CheckOut)
	assert.Equal(t, 3, mine[0].Guests)
}

func TestCreateOrUpdate_CancelledBookingStartsFresh(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 1, PropertyID: 1, UserID: uptr(4), CheckIn: day("2030-07-01"),
		CheckOut: day("2030-07-03"), Status: model.BookingCancelled})
	svc := newService(t, store)

	in := input("2030-07-01", "2030-07-03")
	in.UserID = uptr(4)
	b, created, err := svc.CreateOrUpdate(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uint64(1), b.ID)
}

func TestCreateOrUpdate_CompletedStayStartsFresh(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 7, PropertyID: 1, UserID: uptr(4), CheckIn: day("2030-05-01"),
		CheckOut: day("2030-05-05"), Status: model.BookingCompleted})
	svc := newService(t, store)
	ctx := context.Background()

	in := input("2030-07-01", "2030-07-05")
	in.UserID = uptr(4)
	b, created, err := svc.CreateOrUpdate(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uint64(7), b.ID)
	assert.Equal(t, model.BookingPending, b.Status)

	past, err := store.GetBooking(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, past.Status)
	assert.Equal(t, day("2030-05-01"), past.CheckIn)

	mine, err := store.ListBookings(ctx, model.BookingFilter{UserID: 4})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestCreateOrUpdate_ConcurrentOverlapsOneWins(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	svc := newService(t, store)
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		ok        atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every pair of these ranges overlaps on 2030-07-10.
			in := input("2030-07-0"+string(rune('1'+i%9)), "2030-07-11")
			_, _, err := svc.CreateOrUpdate(ctx, in)
			var ce *ConflictError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &ce):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	active, err := store.ActiveBookings(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateOrUpdate_PublishesEvent(t *testing.T) {
	t.Parallel()
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev queue.BookingEvent) bool {
		return ev.Type == queue.EventBookingCreated && ev.OwnerID == 3 && ev.CheckIn == "2030-07-01"
	})).Return(errors.New("broker down")).Once()

	svc := newService(t, newStore(t))
	svc.events = pub

	_, _, err := svc.CreateOrUpdate(context.Background(), input("2030-07-01", "2030-07-05"))
	require.NoError(t, err, "publish failures do not fail the booking")
	pub.AssertExpectations(t)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	seed := []model.Booking{
		{ID: 1, PropertyID: 1, UserID: uptr(4), GuestName: "Sam", GuestEmail: "s@x", CheckIn: day("2030-07-10"),
			CheckOut: day("2030-07-15"), Guests: 2, Status: model.BookingConfirmed},
		{ID: 2, PropertyID: 1, GuestName: "Alex", GuestEmail: "a@x", CheckIn: day("2030-07-20"),
			CheckOut: day("2030-07-25"), Guests: 2, Status: model.BookingPending},
	}
	guest := Actor{UserID: 4, Role: model.RoleUser}
	ptime := func(s string) *time.Time { v := day(s); return &v }
	pint := func(v int) *int { return &v }

	t.Run("own range excluded", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		b, err := svc.Update(context.Background(), 1, guest, BookingPatch{CheckIn: ptime("2030-07-12"), CheckOut: ptime("2030-07-17")})
		require.NoError(t, err)
		assert.Equal(t, day("2030-07-12"), b.CheckIn)
	})

	t.Run("conflict with other booking", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.Update(context.Background(), 1, guest, BookingPatch{CheckOut: ptime("2030-07-21")})
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, []model.DateRange{rng("2030-07-20", "2030-07-25")}, ce.BookedDates)
	})

	t.Run("non-date patch skips the check", func(t *testing.T) {
		t.Parallel()
		store := newStore(t, seed...)
		// Overlapping data already stored must not block a guest count change.
		require.NoError(t, store.WithPropertyLock(context.Background(), 1, func(tx storage.BookingTx) error {
			return tx.InsertBooking(context.Background(), &model.Booking{PropertyID: 1, CheckIn: day("2030-07-11"),
				CheckOut: day("2030-07-12"), Status: model.BookingPending})
		}))
		svc := newService(t, store)
		b, err := svc.Update(context.Background(), 1, guest, BookingPatch{Guests: pint(3)})
		require.NoError(t, err)
		assert.Equal(t, 3, b.Guests)
	})

	t.Run("inverted dates", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.Update(context.Background(), 1, guest, BookingPatch{CheckOut: ptime("2030-07-09")})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, MsgInvalidRange, ve.Message)
	})

	t.Run("stranger forbidden", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.Update(context.Background(), 1, Actor{UserID: 99, Role: model.RoleUser}, BookingPatch{Guests: pint(1)})
		assert.ErrorIs(t, err, storage.ErrForbidden)
	})

	t.Run("host allowed", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.Update(context.Background(), 2, Actor{UserID: 3, Role: model.RoleOwner}, BookingPatch{Guests: pint(1)})
		assert.NoError(t, err)
	})

	t.Run("missing booking", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.Update(context.Background(), 42, guest, BookingPatch{})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	staff := Actor{UserID: 2, Role: model.RoleStaff}
	seed := []model.Booking{
		{ID: 1, PropertyID: 1, CheckIn: day("2030-07-10"), CheckOut: day("2030-07-15"), Status: model.BookingCancelled},
		{ID: 2, PropertyID: 1, CheckIn: day("2030-07-12"), CheckOut: day("2030-07-14"), Status: model.BookingPending},
		{ID: 3, PropertyID: 1, CheckIn: day("2030-09-01"), CheckOut: day("2030-09-03"), Status: model.BookingBlocked},
	}

	t.Run("confirm and audit", func(t *testing.T) {
		t.Parallel()
		store := newStore(t, seed...)
		svc := newService(t, store)
		b, err := svc.UpdateStatus(context.Background(), 2, staff, model.BookingConfirmed)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, b.Status)

		logs, err := store.ListAuditLogs(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "pending -> confirmed", logs[0].Details)
	})

	t.Run("reactivation rechecks dates", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.UpdateStatus(context.Background(), 1, staff, model.BookingConfirmed)
		var ce *ConflictError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("not staff", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.UpdateStatus(context.Background(), 2, Actor{UserID: 3, Role: model.RoleOwner}, model.BookingConfirmed)
		assert.ErrorIs(t, err, storage.ErrForbidden)
	})

	t.Run("unknown status", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.UpdateStatus(context.Background(), 2, staff, "archived")
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("block can only be cancelled", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, newStore(t, seed...))
		_, err := svc.UpdateStatus(context.Background(), 3, staff, model.BookingConfirmed)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)

		b, err := svc.UpdateStatus(context.Background(), 3, staff, model.BookingCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, b.Status)
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 1, PropertyID: 1, UserID: uptr(4), CheckIn: day("2030-07-10"),
		CheckOut: day("2030-07-15"), Status: model.BookingConfirmed})
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, 1, Actor{UserID: 5, Role: model.RoleUser})
	assert.ErrorIs(t, err, storage.ErrForbidden)

	b, err := svc.Cancel(ctx, 1, Actor{UserID: 4, Role: model.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)

	// Released dates can be booked again.
	_, _, err = svc.CreateOrUpdate(ctx, input("2030-07-10", "2030-07-15"))
	assert.NoError(t, err)
}

func TestBlock(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 1, PropertyID: 1, CheckIn: day("2030-07-10"), CheckOut: day("2030-07-15"),
		Status: model.BookingPending})
	svc := newService(t, store)
	ctx := context.Background()
	host := Actor{UserID: 3, Role: model.RoleOwner}

	_, err := svc.Block(ctx, 1, Actor{UserID: 4, Role: model.RoleUser}, day("2030-08-01"), day("2030-08-03"), "")
	assert.ErrorIs(t, err, storage.ErrForbidden)

	_, err = svc.Block(ctx, 1, host, day("2030-07-14"), day("2030-07-16"), "")
	var ce *ConflictError
	assert.ErrorAs(t, err, &ce)

	b, err := svc.Block(ctx, 1, host, day("2030-08-01"), day("2030-08-03"), "painting")
	require.NoError(t, err)
	assert.Equal(t, model.BookingBlocked, b.Status)
	assert.Nil(t, b.UserID)

	// The block now rejects bookings like any other.
	_, _, err = svc.CreateOrUpdate(ctx, input("2030-08-02", "2030-08-04"))
	assert.ErrorAs(t, err, &ce)
}

func TestGet_Visibility(t *testing.T) {
	t.Parallel()
	store := newStore(t, model.Booking{ID: 1, PropertyID: 1, UserID: uptr(4), CheckIn: day("2030-07-10"),
		CheckOut: day("2030-07-15"), Status: model.BookingConfirmed})
	svc := newService(t, store)
	ctx := context.Background()

	for _, a := range []Actor{
		{UserID: 4, Role: model.RoleUser},
		{UserID: 3, Role: model.RoleOwner},
		{UserID: 2, Role: model.RoleStaff},
	} {
		b, err := svc.Get(ctx, 1, a)
		require.NoError(t, err, "actor %+v", a)
		assert.Equal(t, uint64(1), b.ID)
	}

	_, err := svc.Get(ctx, 1, Actor{UserID: 9, Role: model.RoleUser})
	assert.ErrorIs(t, err, storage.ErrForbidden)
	_, err = svc.Get(ctx, 99, Actor{UserID: 4, Role: model.RoleUser})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
