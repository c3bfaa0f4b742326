package devgateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/campus-notifier/internal/model"
)

// ErrNotFound is returned when a row does not exist for the caller.
var ErrNotFound = errors.New("not found")

// timeLayout matches the zone-less timestamps the campus services emit.
const timeLayout = "2006-01-02T15:04:05"

// Repository persists dev gateway state in SQLite.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// notificationRow maps the notifications table.
type notificationRow struct {
	ID               int64          `db:"id"`
	UserID           string         `db:"user_id"`
	Title            string         `db:"title"`
	Content          string         `db:"content"`
	NotificationType string         `db:"notification_type"`
	ReferenceType    string         `db:"reference_type"`
	ReferenceID      string         `db:"reference_id"`
	CreatedAt        string         `db:"created_at"`
	ReadAt           sql.NullString `db:"read_at"`
	Important        bool           `db:"important"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:               model.ID(strconv.FormatInt(r.ID, 10)),
		Title:            r.Title,
		Content:          r.Content,
		NotificationType: model.NotificationType(r.NotificationType),
		ReferenceType:    r.ReferenceType,
		ReferenceID:      r.ReferenceID,
		CreatedAt:        r.CreatedAt,
		Important:        r.Important,
	}
	if r.ReadAt.Valid && r.ReadAt.String != "" {
		ts := r.ReadAt.String
		n.ReadAt = &ts
		n.Read = true
	}
	return n
}

type preferenceRow struct {
	NotificationType string `db:"notification_type"`
	EmailEnabled     bool   `db:"email_enabled"`
	PushEnabled      bool   `db:"push_enabled"`
	InAppEnabled     bool   `db:"in_app_enabled"`
}

// OpenRepository opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func OpenRepository(dbPath string) (*Repository, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &Repository{db: db, now: time.Now}
	if err := r.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (r *Repository) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := r.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = r.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ListNotifications returns one zero-based page of the user's
// notifications, newest first, plus the total count.
func (r *Repository) ListNotifications(
	ctx context.Context,
	userID string,
	page, size int,
) ([]model.Notification, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ?", userID,
	); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		userID, size, page*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, total, nil
}

// UnreadCount counts the user's unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead sets read_at on one notification. Already read rows keep
// their original timestamp.
func (r *Repository) MarkRead(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`,
		r.stamp(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return expectRow(res)
}

// MarkAllRead marks every unread notification of the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL",
		r.stamp(), userID,
	)
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes one notification.
func (r *Repository) DeleteNotification(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return expectRow(res)
}

// ClearAll removes every notification of the user.
func (r *Repository) ClearAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}
	return nil
}

// CreateNotification inserts a notification for the user and returns it
// with its assigned ID.
func (r *Repository) CreateNotification(
	ctx context.Context,
	userID string,
	n model.Notification,
) (model.Notification, error) {
	if n.NotificationType == "" {
		n.NotificationType = model.TypeSystemAnnouncement
	}
	createdAt := r.stamp()

	var readAt interface{}
	if n.IsRead() {
		readAt = createdAt
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			user_id, title, content, notification_type,
			reference_type, reference_id, created_at, read_at, important
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, n.Title, n.Content, string(n.NotificationType),
		n.ReferenceType, n.ReferenceID, createdAt, readAt, n.Important,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Notification{}, fmt.Errorf("reading notification id: %w", err)
	}

	var row notificationRow
	if err := r.db.GetContext(ctx, &row, "SELECT * FROM notifications WHERE id = ?", id); err != nil {
		return model.Notification{}, fmt.Errorf("reloading notification %d: %w", id, err)
	}
	return row.toModel(), nil
}

// Preferences returns the user's stored preference records. Types never
// saved are absent.
func (r *Repository) Preferences(ctx context.Context, userID string) ([]model.Preference, error) {
	var rows []preferenceRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT notification_type, email_enabled, push_enabled, in_app_enabled
		FROM notification_preferences
		WHERE user_id = ?
		ORDER BY notification_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}

	out := make([]model.Preference, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Preference{
			NotificationType: model.NotificationType(row.NotificationType),
			EmailEnabled:     row.EmailEnabled,
			PushEnabled:      row.PushEnabled,
			InAppEnabled:     row.InAppEnabled,
		})
	}
	return out, nil
}

// ReplacePreferences swaps the user's full preference set in one
// transaction.
func (r *Repository) ReplacePreferences(
	ctx context.Context,
	userID string,
	prefs []model.Preference,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notification_preferences WHERE user_id = ?", userID,
	); err != nil {
		return fmt.Errorf("clearing preferences: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO notification_preferences (
			user_id, notification_type, email_enabled, push_enabled, in_app_enabled
		) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing preference insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prefs {
		if p.NotificationType == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			userID, string(p.NotificationType),
			p.EmailEnabled, p.PushEnabled, p.InAppEnabled,
		); err != nil {
			return fmt.Errorf("saving preference %s: %w", p.NotificationType, err)
		}
	}

	return tx.Commit()
}

// Subscribe records an event subscription. Subscribing twice is a no-op.
func (r *Repository) Subscribe(ctx context.Context, userID, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO event_subscriptions (user_id, event_id) VALUES (?, ?)",
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("subscribing to event %s: %w", eventID, err)
	}
	return nil
}

// Unsubscribe removes an event subscription.
func (r *Repository) Unsubscribe(ctx context.Context, userID, eventID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM event_subscriptions WHERE user_id = ? AND event_id = ?",
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("unsubscribing from event %s: %w", eventID, err)
	}
	return expectRow(res)
}

// Subscribed reports whether the user is subscribed to eventID.
func (r *Repository) Subscribed(ctx context.Context, userID, eventID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM event_subscriptions WHERE user_id = ? AND event_id = ?",
		userID, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("checking subscription: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
