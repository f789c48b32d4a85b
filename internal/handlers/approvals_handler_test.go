package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

func requestApproval(t *testing.T, api *testAPI, body map[string]any) string {
	t.Helper()
	rec := api.do(http.MethodPost, "/request-reservation-approval", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "Approval request created. Please wait for staff confirmation.", out["message"])
	return out["approvalId"].(string)
}

func approvalBody() map[string]any {
	return map[string]any{
		"customerName":   "Lucía",
		"customerPhone":  "+34 611 222 333",
		"date":           "2026-05-10",
		"time":           "20:30:00",
		"numberOfPeople": "6",
		"conversationId": "conv-42",
	}
}

func TestRequestApproval_Validation(t *testing.T) {
	api := newTestAPI(t)

	cases := map[string]struct {
		field string
		value any
		want  string
	}{
		"bad date":    {"date", "10/05/2026", "Invalid date format. Use YYYY-MM-DD"},
		"past":        {"date", "2026-04-30", "Reservation date cannot be in the past"},
		"too far":     {"date", "2027-05-02", "Reservation date cannot be more than 1 year in the future"},
		"bad time":    {"time", "20:30", "Invalid time format. Use HH:MM:SS"},
		"too many":    {"numberOfPeople", 120, "Number of people must be between 1 and 100"},
		"bad phone":   {"customerPhone", "phone?", "Invalid phone number format"},
		"blank name":  {"customerName", "  ", "Customer name cannot be empty"},
		"missing day": {"date", nil, "Missing required fields"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := approvalBody()
			body[tc.field] = tc.value
			rec := api.do(http.MethodPost, "/request-reservation-approval", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tc.want, out["error"])
			assert.Contains(t, out, "approvalId")
			assert.Nil(t, out["approvalId"])
		})
	}

	// today and the last day of the window are both accepted
	for _, day := range []string{"2026-05-01", "2027-05-01"} {
		body := approvalBody()
		body["date"] = day
		requestApproval(t, api, body)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	api := newTestAPI(t)
	id := requestApproval(t, api, approvalBody())

	rec := api.do(http.MethodPost, "/check-approval-status", map[string]any{"approvalId": id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"pending","workerNotes":null,"respondedAt":null}`, rec.Body.String())

	rec = api.do(http.MethodGet, "/reservation-approvals?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["approvals"].([]any), 1)

	rec = api.do(http.MethodPatch, "/reservation-approvals/"+id, map[string]any{
		"status": "approved", "workerNotes": "Terrace table",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "approved", out["approval"].(map[string]any)["status"])
	res := out["reservation"].(map[string]any)
	assert.Equal(t, "confirmed", res["status"])
	assert.Equal(t, "2026-05-10T20:30:00Z", res["reservation_time"])
	assert.EqualValues(t, 6, res["number_of_people"])

	rec = api.do(http.MethodPost, "/check-approval-status", map[string]any{"approvalId": id})
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.Equal(t, "approved", out["status"])
	assert.Equal(t, "Terrace table", out["workerNotes"])
	assert.NotNil(t, out["respondedAt"])

	list, err := api.reservations.List(context.Background(), reservations.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRespondApproval_Reject(t *testing.T) {
	api := newTestAPI(t)
	id := requestApproval(t, api, approvalBody())

	rec := api.do(http.MethodPatch, "/reservation-approvals/"+id, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, "/reservation-approvals/"+id, map[string]any{"status": "rejected"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode(t, rec), "reservation")

	list, err := api.reservations.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	rec = api.do(http.MethodPatch, "/reservation-approvals/unknown", map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingReservations struct {
	reservations.Repository
}

func (failingReservations) Create(context.Context, reservations.Reservation) (*reservations.Reservation, error) {
	return nil, errors.New("insert failed")
}

func TestRespondApproval_ReservationInsertFails(t *testing.T) {
	api := newTestAPI(t, func(cfg *HandlerConfig) {
		cfg.Reservations = failingReservations{cfg.Reservations}
	})
	id := requestApproval(t, api, approvalBody())

	rec := api.do(http.MethodPatch, "/reservation-approvals/"+id, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Approval updated but failed to create reservation", out["error"])
	assert.Equal(t, "approved", out["approval"].(map[string]any)["status"])

	// no rollback
	a, err := api.approvals.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "approved", string(a.Status))
}

func TestCheckApprovalStatus_Errors(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/check-approval-status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Missing approvalId", out["error"])
	assert.Equal(t, "error", out["status"])

	rec = api.do(http.MethodPost, "/check-approval-status", map[string]any{"approvalId": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Approval request not found", decode(t, rec)["error"])
}
