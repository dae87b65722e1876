package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmind/backend/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetBooking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, _ := json.Marshal(map[string]string{"airline": "Delta Air Lines"})
	guest, _ := json.Marshal(map[string]string{"name": "Alex Rivera"})

	b := &domain.Booking{
		BookingRef: "TRV-AB12CD",
		SessionID:  "sess_a",
		Kind:       domain.SelectionTypeFlight,
		ItemID:     "fl_1",
		Item:       item,
		Guest:      guest,
		Total:      489.50,
		Status:     "confirmed",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveBooking(ctx, b))

	got, err := store.GetBooking(ctx, "TRV-AB12CD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess_a", got.SessionID)
	assert.Equal(t, domain.SelectionTypeFlight, got.Kind)
	assert.Equal(t, 489.50, got.Total)
	assert.JSONEq(t, string(guest), string(got.Guest))
}

func TestGetBookingMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetBooking(context.Background(), "TRV-NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListBookingsBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, ref := range []string{"TRV-A1", "TRV-A2"} {
		require.NoError(t, store.SaveBooking(ctx, &domain.Booking{
			BookingRef: ref,
			SessionID:  "sess_a",
			Kind:       domain.SelectionTypeHotel,
			ItemID:     "ht_1",
			Total:      float64(100 * (i + 1)),
			Status:     "confirmed",
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.SaveBooking(ctx, &domain.Booking{
		BookingRef: "TRV-B1",
		SessionID:  "sess_b",
		Kind:       domain.SelectionTypeFlight,
		ItemID:     "fl_1",
		Total:      300,
		Status:     "confirmed",
		CreatedAt:  time.Now().UTC(),
	}))

	bookings, err := store.ListBookings(ctx, "sess_a")
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "TRV-A1", bookings[0].BookingRef)
	assert.Equal(t, "TRV-A2", bookings[1].BookingRef)
}

func TestDuplicateBookingRefRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := &domain.Booking{
		BookingRef: "TRV-DUP",
		SessionID:  "sess_a",
		Kind:       domain.SelectionTypeFlight,
		ItemID:     "fl_1",
		Total:      100,
		Status:     "confirmed",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveBooking(ctx, b))
	assert.Error(t, store.SaveBooking(ctx, b))
}
