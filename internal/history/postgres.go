package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mreicher/runflow/internal/db"
	"github.com/mreicher/runflow/internal/tracker"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) Append(ctx context.Context, run SavedRun) error {
	splits, err := json.Marshal(run.Splits)
	if err != nil {
		return err
	}
	path, err := json.Marshal(run.Path)
	if err != nil {
		return err
	}
	altitudes, err := json.Marshal(run.Altitudes)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO runs (id, user_id, started_at, distance_m, duration_sec, elevation_gain_m, splits, path, altitudes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, run.ID, run.UserID, run.Date, run.DistanceMeters, run.DurationSeconds, run.ElevationGainMeters, splits, path, altitudes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRun
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]SavedRun, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, started_at, distance_m, duration_sec, elevation_gain_m, splits, path, altitudes
		FROM runs WHERE user_id = $1
		ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SavedRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (SavedRun, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, started_at, distance_m, duration_sec, elevation_gain_m, splits, path, altitudes
		FROM runs WHERE id = $1
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedRun{}, ErrRunNotFound
	}
	return run, err
}

func scanRun(row pgx.Row) (SavedRun, error) {
	var run SavedRun
	var splits, path, altitudes []byte
	if err := row.Scan(&run.ID, &run.UserID, &run.Date, &run.DistanceMeters, &run.DurationSeconds,
		&run.ElevationGainMeters, &splits, &path, &altitudes); err != nil {
		return SavedRun{}, err
	}

	run.Splits = []tracker.Split{}
	run.Path = []tracker.LatLng{}
	run.Altitudes = []*float64{}
	if err := unmarshalColumn(splits, &run.Splits); err != nil {
		return SavedRun{}, fmt.Errorf("decode splits: %w", err)
	}
	if err := unmarshalColumn(path, &run.Path); err != nil {
		return SavedRun{}, fmt.Errorf("decode path: %w", err)
	}
	if err := unmarshalColumn(altitudes, &run.Altitudes); err != nil {
		return SavedRun{}, fmt.Errorf("decode altitudes: %w", err)
	}
	return run, nil
}

func unmarshalColumn(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
