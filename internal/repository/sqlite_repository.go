package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
)

// Fixed width keeps lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS image_analyses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	image_key TEXT NOT NULL DEFAULT '',
	image_name TEXT NOT NULL,
	image_size INTEGER NOT NULL,
	image_width INTEGER NOT NULL,
	image_height INTEGER NOT NULL,
	classification TEXT NOT NULL,
	confidence TEXT NOT NULL,
	probability REAL NOT NULL,
	probability_real REAL NOT NULL,
	probability_ai REAL NOT NULL,
	probability_graphic REAL NOT NULL,
	color_analysis TEXT NOT NULL,
	transparency_analysis TEXT NOT NULL,
	noise_analysis TEXT NOT NULL,
	watermark_analysis TEXT NOT NULL,
	symmetry_analysis TEXT NOT NULL,
	metadata_analysis TEXT,
	ml_features TEXT NOT NULL,
	processing_time_ns INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_user ON image_analyses(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_session ON image_analyses(session_id, created_at);
`

const selectColumns = `id, user_id, session_id, image_url, image_key, image_name, image_size,
	image_width, image_height, color_analysis, transparency_analysis, noise_analysis,
	watermark_analysis, symmetry_analysis, metadata_analysis, ml_features,
	processing_time_ns, created_at`

// SQLiteRepository stores analysis records in a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens or creates the database at path.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Save(ctx context.Context, rec *AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	res := rec.Result
	tc, ok := res.Classification.AsTernary()
	if !ok {
		return fmt.Errorf("save analysis %s: only ternary classifications are stored", rec.ID)
	}

	blobs, err := marshalAll(res.Color, res.Transparency, res.Noise, res.Watermark, res.Symmetry, res.Classification)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	var metadata sql.NullString
	if res.Metadata != nil {
		b, err := json.Marshal(res.Metadata)
		if err != nil {
			return fmt.Errorf("save analysis %s: %w", rec.ID, err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO image_analyses (
		id, user_id, session_id, image_url, image_key, image_name, image_size,
		image_width, image_height, classification, confidence, probability,
		probability_real, probability_ai, probability_graphic,
		color_analysis, transparency_analysis, noise_analysis, watermark_analysis,
		symmetry_analysis, metadata_analysis, ml_features, processing_time_ns, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionID, rec.ImageURL, rec.ImageKey, rec.ImageName, rec.ImageSize,
		res.ImageWidth, res.ImageHeight, string(tc.Label), string(tc.Confidence), tc.Probability,
		tc.AllProbabilities.Real, tc.AllProbabilities.AIGenerated, tc.AllProbabilities.GraphicDesign,
		blobs[0], blobs[1], blobs[2], blobs[3], blobs[4], metadata, blobs[5],
		int64(rec.ProcessedIn), rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM image_analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]*AnalysisRecord, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + selectColumns + ` FROM image_analyses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	records := []*AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM image_analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if n == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*AnalysisRecord, error) {
	var (
		rec                                   AnalysisRecord
		color, transparency, noise, watermark string
		symmetry, features, createdAt         string
		metadata                              sql.NullString
		processedIn                           int64
	)
	err := s.Scan(
		&rec.ID, &rec.UserID, &rec.SessionID, &rec.ImageURL, &rec.ImageKey, &rec.ImageName, &rec.ImageSize,
		&rec.Result.ImageWidth, &rec.Result.ImageHeight,
		&color, &transparency, &noise, &watermark, &symmetry, &metadata, &features,
		&processedIn, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	res := &rec.Result
	for _, blob := range []struct {
		raw string
		dst any
	}{
		{color, &res.Color},
		{transparency, &res.Transparency},
		{noise, &res.Noise},
		{watermark, &res.Watermark},
		{symmetry, &res.Symmetry},
		{features, &res.Classification},
	} {
		if err := json.Unmarshal([]byte(blob.raw), blob.dst); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
	}
	if metadata.Valid {
		res.Metadata = &analyzer.MetadataAnalysis{}
		if err := json.Unmarshal([]byte(metadata.String), res.Metadata); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
	}

	rec.ProcessedIn = time.Duration(processedIn)
	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func marshalAll(values ...any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}
