package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"voxdesk.io/internal/session"
)

var sessNow = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

func TestSessionInsert(t *testing.T) {
	store, mock := newMockStore(t)

	s := &session.Session{
		ID:           "sess-1",
		UserID:       "user-1",
		TenantID:     "tenant-1",
		BusinessID:   "biz-1",
		IP:           "203.0.113.9",
		DeviceInfo:   "desktop/chrome",
		Active:       true,
		CreatedAt:    sessNow,
		LastActivity: sessNow,
		ExpiresAt:    sessNow.Add(time.Hour),
	}
	mock.ExpectExec("insert into sessions").
		WithArgs(s.ID, s.UserID, s.TenantID, s.BusinessID, s.IP, s.DeviceInfo,
			s.Active, s.CreatedAt, s.LastActivity, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Insert(context.Background(), s); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	expectMet(t, mock)
}

func TestSessionGetScopedToUser(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "tenant_id", "business_id", "ip", "device_info", "active", "created_at", "last_activity", "expires_at", "end_reason"}).
		AddRow("sess-1", "user-1", "tenant-1", "biz-1", "203.0.113.9", "desktop/chrome", true, sessNow, sessNow, sessNow.Add(time.Hour), nil)
	mock.ExpectQuery(`from sessions\s+where id = \$1 and user_id = \$2`).
		WithArgs("sess-1", "user-1").
		WillReturnRows(rows)

	s, err := store.Get(context.Background(), "sess-1", "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.ID != "sess-1" || !s.Active || s.EndReason != "" {
		t.Errorf("session = %+v", s)
	}
	expectMet(t, mock)
}

func TestSessionGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from sessions").
		WithArgs("sess-1", "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "sess-1", "user-2")
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestSessionTouchMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update sessions").
		WithArgs(sessNow, sessNow.Add(time.Hour), "sess-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Touch(context.Background(), "sess-1", "user-1", sessNow, sessNow.Add(time.Hour))
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for inactive or missing session", err)
	}
	expectMet(t, mock)
}

func TestSessionInvalidate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update sessions\s+set active = false, end_reason = \$1\s+where id = \$2 and user_id = \$3 and active`).
		WithArgs(session.EndReasonLogout, "sess-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Invalidate(context.Background(), "sess-1", "user-1", session.EndReasonLogout); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	expectMet(t, mock)
}

func TestSessionInvalidateAllReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update sessions").
		WithArgs(session.EndReasonLogoutAll, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.InvalidateAll(context.Background(), "user-1", session.EndReasonLogoutAll)
	if err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	expectMet(t, mock)
}

func TestSessionListActiveOrdersByActivity(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "tenant_id", "business_id", "ip", "device_info", "active", "created_at", "last_activity", "expires_at"}).
		AddRow("sess-2", "user-1", "tenant-1", "biz-1", "", "", true, sessNow, sessNow, sessNow.Add(time.Hour)).
		AddRow("sess-1", "user-1", "tenant-1", "biz-1", "", "", true, sessNow, sessNow.Add(-time.Minute), sessNow.Add(time.Hour))
	mock.ExpectQuery(`where user_id = \$1 and active\s+order by last_activity desc`).
		WithArgs("user-1").
		WillReturnRows(rows)

	got, err := store.ListActive(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 2 || got[0].ID != "sess-2" {
		t.Errorf("sessions = %v", got)
	}
	expectMet(t, mock)
}

func TestSessionInvalidateExpired(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`where active and expires_at < \$2`).
		WithArgs(session.EndReasonExpired, sessNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.InvalidateExpired(context.Background(), sessNow, session.EndReasonExpired)
	if err != nil {
		t.Fatalf("InvalidateExpired: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
	expectMet(t, mock)
}
