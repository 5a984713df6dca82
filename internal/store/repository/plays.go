package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/store"
)

var playCopyColumns = []string{
	"boxscore_id", "play_index", "quarter", "elapsed_seconds", "category",
	"offense", "defense", "down", "yards_to_go", "distance_to_goal",
	"home_score", "away_score", "home_wp", "home_wpa", "exp_pts_before",
	"is_turnover", "is_error", "record",
}

// PlayRepository persists annotated play lists.
type PlayRepository struct {
	db *store.Database
}

func NewPlayRepository(db *store.Database) *PlayRepository {
	return &PlayRepository{db: db}
}

// ReplaceGamePlays stores a feature set, replacing whatever was stored for
// the game before. Readers see either the old rows or the new ones.
func (r *PlayRepository) ReplaceGamePlays(ctx context.Context, fs *pbp.GameFeatureSet) error {
	rows := make([]store.Play, len(fs.Plays))
	for i := range fs.Plays {
		row, err := NewPlayRow(&fs.Plays[i])
		if err != nil {
			return err
		}
		rows[i] = row
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertGame(ctx, tx, fs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plays WHERE boxscore_id = $1`, fs.Game.BoxscoreID); err != nil {
		return fmt.Errorf("deleting plays of %s: %w", fs.Game.BoxscoreID, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("plays", playCopyColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, playValues(row)...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy play %d of %s: %w", row.PlayIndex, row.BoxscoreID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	return tx.Commit()
}

// ListByGame returns a game's play records in game order.
func (r *PlayRepository) ListByGame(ctx context.Context, boxscoreID string) ([]pbp.PlayRecord, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT record FROM plays WHERE boxscore_id = $1 ORDER BY play_index`, boxscoreID)
	if err != nil {
		return nil, fmt.Errorf("querying plays: %w", err)
	}
	defer rows.Close()

	var records []pbp.PlayRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning play: %w", err)
		}
		var rec pbp.PlayRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding play of %s: %w", boxscoreID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadFeatureSet rebuilds a stored feature set. It returns ErrNotFound when
// the game has not been built.
func (r *PlayRepository) LoadFeatureSet(ctx context.Context, games *GameRepository, boxscoreID string) (*pbp.GameFeatureSet, error) {
	game, err := games.GetByBoxscoreID(ctx, boxscoreID)
	if err != nil {
		return nil, err
	}
	plays, err := r.ListByGame(ctx, boxscoreID)
	if err != nil {
		return nil, err
	}
	return &pbp.GameFeatureSet{Game: Meta(game), Plays: plays, Report: Report(game)}, nil
}

// NewPlayRow flattens a play record into its table row.
func NewPlayRow(rec *pbp.PlayRecord) (store.Play, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return store.Play{}, fmt.Errorf("encoding play %d: %w", rec.Index, err)
	}
	return store.Play{
		BoxscoreID:     rec.BoxscoreID,
		PlayIndex:      rec.Index,
		Quarter:        rec.Quarter,
		ElapsedSeconds: rec.ElapsedSeconds,
		Category:       string(rec.Category),
		Offense:        nullString(rec.Possession.Offense),
		Defense:        nullString(rec.Possession.Defense),
		Down:           nullInt(rec.Down),
		YardsToGo:      nullInt(rec.YardsToGo),
		DistanceToGoal: nullInt(rec.DistanceToGoal),
		HomeScore:      rec.HomeScore,
		AwayScore:      rec.AwayScore,
		HomeWP:         rec.HomeWinProbability,
		HomeWPA:        rec.HomeWinProbabilityAdded,
		ExpPtsBefore:   nullFloat(rec.ExpPtsBefore),
		IsTurnover:     rec.IsTurnover,
		IsError:        rec.IsError,
		Record:         raw,
	}, nil
}

// playValues orders a row's values like playCopyColumns.
func playValues(p store.Play) []interface{} {
	return []interface{}{
		p.BoxscoreID, p.PlayIndex, p.Quarter, p.ElapsedSeconds, p.Category,
		p.Offense, p.Defense, p.Down, p.YardsToGo, p.DistanceToGoal,
		p.HomeScore, p.AwayScore, p.HomeWP, p.HomeWPA, p.ExpPtsBefore,
		p.IsTurnover, p.IsError, string(p.Record),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringArray(ids []string) pq.StringArray {
	return pq.StringArray(ids)
}
