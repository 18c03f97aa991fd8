package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minutelabs/minute-core/internal/config"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session or update does not exist.
var ErrNotFound = errors.New("store: not found")

// Session is one meeting. Notes and agenda are free-form markdown owned by
// the facilitator.
type Session struct {
	ID        string
	Title     string
	Notes     string
	Agenda    string
	CreatedAt time.Time
	EndedAt   *time.Time
}

// Segment is a persisted transcript segment. SpeakerName is nil until the
// user renames the diarized speaker.
type Segment struct {
	ID          int64
	SessionID   string
	SpeakerID   string
	SpeakerName *string
	Text        string
	StartMS     int64
	EndMS       int64
	CreatedAt   time.Time
}

// MeetingUpdate is an immutable AI-generated summary/agenda pair.
type MeetingUpdate struct {
	ID        int64
	SessionID string
	Summary   string
	Agenda    string
	ModelUsed string
	CreatedAt time.Time
}

// Store wraps the SQLite-backed session store.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    agenda TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    speaker_id TEXT NOT NULL,
    speaker_name TEXT,
    text TEXT NOT NULL,
    start_ms INTEGER NOT NULL,
    end_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_segments_session ON segments(session_id, id);
CREATE TABLE IF NOT EXISTS meeting_updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    summary TEXT NOT NULL,
    agenda TEXT NOT NULL,
    model_used TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_updates_session ON meeting_updates(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSession inserts a new session and returns it.
func (s *Store) CreateSession(ctx context.Context, title string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: s.clock().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, title, created_at) VALUES(?, ?, ?)`,
		sess.ID, sess.Title, sess.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, title, notes, agenda, created_at, ended_at
		 FROM sessions WHERE session_id = ?`, id)
	var sess Session
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Notes, &sess.Agenda, &sess.CreatedAt, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, title, notes, agenda, created_at, ended_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var ended sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Notes, &sess.Agenda, &sess.CreatedAt, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			sess.EndedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, s.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return requireRow(res)
}

// SetNotes replaces the facilitator notes for a session.
func (s *Store) SetNotes(ctx context.Context, id, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET notes = ? WHERE session_id = ?`, notes, id)
	if err != nil {
		return fmt.Errorf("set notes: %w", err)
	}
	return requireRow(res)
}

// SetAgenda replaces the agenda for a session.
func (s *Store) SetAgenda(ctx context.Context, id, agenda string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET agenda = ? WHERE session_id = ?`, agenda, id)
	if err != nil {
		return fmt.Errorf("set agenda: %w", err)
	}
	return requireRow(res)
}

// AppendSegment writes one transcript segment. Segments are append-only;
// insertion order preserves engine emission order.
func (s *Store) AppendSegment(ctx context.Context, seg Segment) error {
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments(session_id, speaker_id, speaker_name, text, start_ms, end_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		seg.SessionID, seg.SpeakerID, seg.SpeakerName, seg.Text, seg.StartMS, seg.EndMS, seg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// ListSegments returns the segments of a session in insertion order.
func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, speaker_id, speaker_name, text, start_ms, end_ms, created_at
		 FROM segments WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var seg Segment
		var name sql.NullString
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.SpeakerID, &name, &seg.Text, &seg.StartMS, &seg.EndMS, &seg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if name.Valid {
			n := name.String
			seg.SpeakerName = &n
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// RenameSpeaker sets the display name on every segment of the session that
// shares the given speaker id. Segments in other sessions are untouched.
func (s *Store) RenameSpeaker(ctx context.Context, sessionID, speakerID, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments SET speaker_name = ? WHERE session_id = ? AND speaker_id = ?`,
		name, sessionID, speakerID)
	if err != nil {
		return 0, fmt.Errorf("rename speaker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SaveMeetingUpdate persists an AI meeting update and mirrors its revised
// agenda onto the session.
func (s *Store) SaveMeetingUpdate(ctx context.Context, upd MeetingUpdate) (MeetingUpdate, error) {
	if upd.CreatedAt.IsZero() {
		upd.CreatedAt = s.clock().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO meeting_updates(session_id, summary, agenda, model_used, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		upd.SessionID, upd.Summary, upd.Agenda, upd.ModelUsed, upd.CreatedAt)
	if err != nil {
		return MeetingUpdate{}, fmt.Errorf("insert meeting update: %w", err)
	}
	upd.ID, _ = res.LastInsertId()
	if err := s.SetAgenda(ctx, upd.SessionID, upd.Agenda); err != nil {
		return MeetingUpdate{}, err
	}
	return upd, nil
}

// LatestMeetingUpdate returns the most recent update for a session.
func (s *Store) LatestMeetingUpdate(ctx context.Context, sessionID string) (MeetingUpdate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, summary, agenda, model_used, created_at
		 FROM meeting_updates WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID)
	var upd MeetingUpdate
	if err := row.Scan(&upd.ID, &upd.SessionID, &upd.Summary, &upd.Agenda, &upd.ModelUsed, &upd.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MeetingUpdate{}, ErrNotFound
		}
		return MeetingUpdate{}, fmt.Errorf("scan meeting update: %w", err)
	}
	return upd, nil
}

// Prune applies the retention policy: sessions older than RetentionDays
// and everything beyond the newest MaxSessions are removed.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM sessions WHERE created_at < ?`, cutoff); err != nil {
			return fmt.Errorf("prune by age: %w", err)
		}
	}
	if s.cfg.MaxSessions > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM sessions WHERE session_id NOT IN (
			     SELECT session_id FROM sessions ORDER BY created_at DESC LIMIT ?
			 )`, s.cfg.MaxSessions); err != nil {
			return fmt.Errorf("prune by count: %w", err)
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
