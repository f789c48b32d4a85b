package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

func TestCreateReserva(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/reservas", map[string]any{
		"customer_name":    "Pablo",
		"customer_phone":   "600 000 000",
		"number_of_people": 4,
		"reservation_time": "2026-06-01T21:30:00+02:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	r := decode(t, rec)["reservation"].(map[string]any)
	assert.Equal(t, "pending", r["status"])
	assert.Equal(t, "2026-06-01T19:30:00Z", r["reservation_time"])
	assert.EqualValues(t, 4, r["number_of_people"])
}

func TestCreateReserva_Validation(t *testing.T) {
	api := newTestAPI(t)
	base := func() map[string]any {
		return map[string]any{
			"customer_name":    "Pablo",
			"customer_phone":   "600",
			"number_of_people": 2,
			"reservation_time": "2026-06-01T21:30:00Z",
		}
	}

	missing := base()
	delete(missing, "reservation_time")
	tooMany := base()
	tooMany["number_of_people"] = 101
	asString := base()
	asString["number_of_people"] = "2"
	badTime := base()
	badTime["reservation_time"] = "next friday"

	cases := map[string]struct {
		body map[string]any
		want string
	}{
		"missing":   {missing, "Missing required fields: customer_name, customer_phone, number_of_people, reservation_time"},
		"too many":  {tooMany, "Invalid number_of_people: must be a number between 1 and 100"},
		"as string": {asString, "Invalid number_of_people: must be a number between 1 and 100"},
		"bad time":  {badTime, "Invalid reservation_time: must be a valid ISO 8601 date"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/reservas", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decode(t, rec)["error"])
		})
	}
}

func seedReservation(t *testing.T, api *testAPI, people int, at time.Time, status reservations.Status) string {
	t.Helper()
	r, err := api.reservations.Create(context.Background(), reservations.New("Guest", "600", people, at, status, fixedNow))
	require.NoError(t, err)
	return r.ID
}

func TestReservationsDashboard(t *testing.T) {
	api := newTestAPI(t)
	late := seedReservation(t, api, 2, time.Date(2026, 6, 2, 21, 0, 0, 0, time.UTC), reservations.StatusPending)
	early := seedReservation(t, api, 3, time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC), reservations.StatusConfirmed)

	rec := api.do(http.MethodGet, "/reservations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["reservations"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, early, list[0].(map[string]any)["id"])

	rec = api.do(http.MethodGet, "/reservations?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode(t, rec)["reservations"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, late, list[0].(map[string]any)["id"])

	rec = api.do(http.MethodPatch, "/reservations/"+late, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode(t, rec)["reservation"].(map[string]any)["status"])

	rec = api.do(http.MethodPatch, "/reservations/"+late, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, "/reservations/nope", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Reservation not found", decode(t, rec)["error"])

	rec = api.do(http.MethodGet, "/reservations/"+early, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckAvailability(t *testing.T) {
	api := newTestAPI(t)
	slot := time.Date(2099, 5, 2, 20, 0, 0, 0, time.UTC)
	seedReservation(t, api, 20, slot.Add(-15*time.Minute), reservations.StatusConfirmed)
	seedReservation(t, api, 28, slot.Add(30*time.Minute), reservations.StatusPending)
	seedReservation(t, api, 40, slot, reservations.StatusRejected)

	rec := api.do(http.MethodPost, "/check-reservation-availability", map[string]any{
		"date": "2099-05-02", "time": "20:00", "numberOfPeople": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "Not enough capacity. Maximum 50 people per time slot. Currently 48 people reserved.", body["reason"])

	rec = api.do(http.MethodPost, "/check-reservation-availability", map[string]any{
		"date": "2099-05-02", "time": "20:00", "numberOfPeople": "2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true,"message":"Reservation slot available"}`, rec.Body.String())
}

func TestCheckAvailability_Errors(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/check-reservation-availability", map[string]any{"date": "2099-05-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"available":false,"reason":"Missing required fields: date, time, numberOfPeople"}`, rec.Body.String())

	rec = api.do(http.MethodPost, "/check-reservation-availability", map[string]any{
		"date": "02/05/2099", "time": "20:00", "numberOfPeople": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid date or time", decode(t, rec)["reason"])

	rec = api.do(http.MethodPost, "/check-reservation-availability", map[string]any{
		"date": "2099-05-02", "time": "09:00", "numberOfPeople": 2,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Restaurant is closed. Hours: 12:00 PM - 11:00 PM", decode(t, rec)["reason"])
}
