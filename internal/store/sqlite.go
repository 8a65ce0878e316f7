package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

const currentVideoKey = "current_video_id"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) GetTimelines(ctx context.Context, videoID string) ([]timeline.TimelineLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM timeline_lines WHERE video_id = ? ORDER BY position
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []timeline.TimelineLine
	for rows.Next() {
		var l timeline.TimelineLine
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if lines == nil {
		return nil, nil
	}

	for i := range lines {
		stamps, err := s.getStamps(ctx, lines[i].ID)
		if err != nil {
			return nil, err
		}
		lines[i].Stamps = stamps
	}
	return lines, nil
}

func (s *SQLiteStore) getStamps(ctx context.Context, lineID string) ([]timeline.TimelineStamp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, id_tag, primary_id, time_start, time_finish, color_hex, label,
		       labels_json, time_events_json, pos_x, pos_y
		FROM timeline_stamps WHERE line_id = ? ORDER BY position
	`, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stamps := []timeline.TimelineStamp{}
	for rows.Next() {
		var st timeline.TimelineStamp
		var primaryID sql.NullString
		var labelsJSON, eventsJSON string
		var posX, posY sql.NullFloat64

		if err := rows.Scan(&st.ID, &st.IDTag, &primaryID, &st.TimeStart, &st.TimeFinish,
			&st.ColorHex, &st.Label, &labelsJSON, &eventsJSON, &posX, &posY); err != nil {
			return nil, err
		}

		st.PrimaryID = primaryID.String
		if err := json.Unmarshal([]byte(labelsJSON), &st.Labels); err != nil {
			return nil, fmt.Errorf("stamp %s labels corrupt: %w", st.ID, err)
		}
		if err := json.Unmarshal([]byte(eventsJSON), &st.TimeEvents); err != nil {
			return nil, fmt.Errorf("stamp %s time events corrupt: %w", st.ID, err)
		}
		if len(st.Labels) == 0 {
			st.Labels = nil
		}
		if len(st.TimeEvents) == 0 {
			st.TimeEvents = nil
		}
		if posX.Valid && posY.Valid {
			st.Position = &timeline.Position{X: posX.Float64, Y: posY.Float64}
		}
		st.IsActiveForMapView = st.Position != nil

		stamps = append(stamps, st)
	}
	return stamps, rows.Err()
}

func (s *SQLiteStore) UpdateTimelines(ctx context.Context, videoID string, lines []timeline.TimelineLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM timeline_lines WHERE video_id = ?", videoID); err != nil {
		return err
	}

	for i, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO timeline_lines (id, video_id, name, position) VALUES (?, ?, ?, ?)
		`, line.ID, videoID, line.Name, i); err != nil {
			return err
		}

		for j, st := range line.Stamps {
			labelsJSON, err := json.Marshal(emptyAsList(st.Labels))
			if err != nil {
				return err
			}
			eventsJSON, err := json.Marshal(emptyAsList(st.TimeEvents))
			if err != nil {
				return err
			}

			var posX, posY sql.NullFloat64
			if st.Position != nil {
				posX = sql.NullFloat64{Float64: st.Position.X, Valid: true}
				posY = sql.NullFloat64{Float64: st.Position.Y, Valid: true}
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO timeline_stamps
					(id, line_id, id_tag, primary_id, time_start, time_finish,
					 color_hex, label, labels_json, time_events_json, pos_x, pos_y, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, st.ID, line.ID, st.IDTag, nullString(st.PrimaryID), st.TimeStart, st.TimeFinish,
				st.ColorHex, st.Label, string(labelsJSON), string(eventsJSON), posX, posY, j); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteTimelines(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM timeline_lines WHERE video_id = ?", videoID)
	return err
}

func (s *SQLiteStore) GetAllVideoIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT video_id FROM timeline_lines
		UNION
		SELECT video_id FROM sync_metadata
		ORDER BY video_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetCurrentVideoID(ctx context.Context) (string, error) {
	return s.GetConfig(ctx, currentVideoKey)
}

func (s *SQLiteStore) SetCurrentVideoID(ctx context.Context, videoID string) error {
	return s.SetConfig(ctx, currentVideoKey, videoID)
}

func (s *SQLiteStore) GetSyncMetadata(ctx context.Context, videoID string) (*SyncMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT video_id, last_sync, last_local_modification, sync_version, content_hash, strategy
		FROM sync_metadata WHERE video_id = ?
	`, videoID)

	var m SyncMetadata
	var lastSync, lastMod, contentHash, strategy sql.NullString
	err := row.Scan(&m.VideoID, &lastSync, &lastMod, &m.SyncVersion, &contentHash, &strategy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.LastSync = parseTime(lastSync)
	m.LastLocalModification = parseTime(lastMod)
	m.ContentHash = contentHash.String
	m.Strategy = strategy.String
	return &m, nil
}

func (s *SQLiteStore) PutSyncMetadata(ctx context.Context, meta *SyncMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (video_id, last_sync, last_local_modification, sync_version, content_hash, strategy)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			last_sync = excluded.last_sync,
			last_local_modification = excluded.last_local_modification,
			sync_version = excluded.sync_version,
			content_hash = excluded.content_hash,
			strategy = excluded.strategy
	`, meta.VideoID, formatTime(meta.LastSync), formatTime(meta.LastLocalModification),
		meta.SyncVersion, nullString(meta.ContentHash), nullString(meta.Strategy))
	return err
}

func (s *SQLiteStore) GetPrefs(ctx context.Context) (Prefs, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT auto_sync, interval_seconds, strategy, retry_count FROM sync_prefs WHERE id = 1
	`)

	var autoSync, intervalSeconds, retryCount int
	var strategy string
	err := row.Scan(&autoSync, &intervalSeconds, &strategy, &retryCount)
	if err == sql.ErrNoRows {
		return DefaultPrefs(), nil
	}
	if err != nil {
		return Prefs{}, err
	}

	return Prefs{
		AutoSync:   autoSync == 1,
		Interval:   time.Duration(intervalSeconds) * time.Second,
		Strategy:   strategy,
		RetryCount: retryCount,
	}, nil
}

func (s *SQLiteStore) PutPrefs(ctx context.Context, prefs Prefs) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_prefs (id, auto_sync, interval_seconds, strategy, retry_count)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			auto_sync = excluded.auto_sync,
			interval_seconds = excluded.interval_seconds,
			strategy = excluded.strategy,
			retry_count = excluded.retry_count
	`, boolToInt(prefs.AutoSync), int(prefs.Interval.Seconds()), prefs.Strategy, prefs.RetryCount)
	return err
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func emptyAsList(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
