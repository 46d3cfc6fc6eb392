package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voxdesk.io/internal/session"
)

var _ session.Store = (*Store)(nil)

// Insert writes an active session row.
func (s *Store) Insert(ctx context.Context, sess *session.Session) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, tenant_id, business_id, ip, device_info, active, created_at, last_activity, expires_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sess.ID, sess.UserID, sess.TenantID, sess.BusinessID, sess.IP, sess.DeviceInfo,
		sess.Active, sess.CreatedAt, sess.LastActivity, sess.ExpiresAt)
	return err
}

// Get loads one session for the user. The user id filter keeps one user from
// probing another's session ids.
func (s *Store) Get(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		sess      session.Session
		endReason sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, tenant_id, business_id, ip, device_info, active, created_at, last_activity, expires_at, end_reason
		from sessions
		where id = $1 and user_id = $2
	`, sessionID, userID).Scan(&sess.ID, &sess.UserID, &sess.TenantID, &sess.BusinessID,
		&sess.IP, &sess.DeviceInfo, &sess.Active, &sess.CreatedAt, &sess.LastActivity,
		&sess.ExpiresAt, &endReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.EndReason = endReason.String
	return &sess, nil
}

// Touch slides the activity window on an active session.
func (s *Store) Touch(ctx context.Context, sessionID, userID string, lastActivity, expiresAt time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set last_activity = $1, expires_at = $2
		where id = $3 and user_id = $4 and active
	`, lastActivity, expiresAt, sessionID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Invalidate marks the session inactive with the end reason. Already-inactive
// sessions are left untouched so the first recorded reason survives.
func (s *Store) Invalidate(ctx context.Context, sessionID, userID, reason string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set active = false, end_reason = $1
		where id = $2 and user_id = $3 and active
	`, reason, sessionID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return session.ErrNotFound
	}
	return nil
}

// InvalidateAll ends every active session for the user.
func (s *Store) InvalidateAll(ctx context.Context, userID, reason string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set active = false, end_reason = $1
		where user_id = $2 and active
	`, reason, userID)
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}

// ListActive returns the user's active sessions, most recent activity first.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*session.Session, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, tenant_id, business_id, ip, device_info, active, created_at, last_activity, expires_at
		from sessions
		where user_id = $1 and active
		order by last_activity desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*session.Session
	for rows.Next() {
		var sess session.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.TenantID, &sess.BusinessID,
			&sess.IP, &sess.DeviceInfo, &sess.Active, &sess.CreatedAt,
			&sess.LastActivity, &sess.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InvalidateExpired is the sweep: any active session past expiry goes
// inactive with the given reason.
func (s *Store) InvalidateExpired(ctx context.Context, now time.Time, reason string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update sessions
		set active = false, end_reason = $1
		where active and expires_at < $2
	`, reason, now)
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}
