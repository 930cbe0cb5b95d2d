package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/evaluation"
)

const evaluationColumns = `id, client_id, guard_id, evaluation_date, kpi_scores, total_score, created_at, editable_until`

type evaluationRow struct {
	ID             string           `db:"id"`
	ClientID       string           `db:"client_id"`
	GuardID        string           `db:"guard_id"`
	EvaluationDate time.Time        `db:"evaluation_date"`
	KPIScores      evaluation.Sheet `db:"kpi_scores"`
	TotalScore     float64          `db:"total_score"`
	CreatedAt      time.Time        `db:"created_at"`
	EditableUntil  time.Time        `db:"editable_until"`
}

func (row evaluationRow) record() evaluation.Record {
	return evaluation.Record{
		ID:             row.ID,
		ClientID:       row.ClientID,
		GuardID:        row.GuardID,
		EvaluationDate: core.Day(row.EvaluationDate),
		Sheet:          row.KPIScores,
		TotalPoints:    row.TotalScore,
		CreatedAt:      row.CreatedAt.UTC(),
		EditableUntil:  row.EditableUntil.UTC(),
	}
}

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *sqlx.DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, rec evaluation.Record) (evaluation.Record, error) {
	row := evaluationRow{
		ID:             rec.ID,
		ClientID:       rec.ClientID,
		GuardID:        rec.GuardID,
		EvaluationDate: rec.EvaluationDate,
		KPIScores:      rec.Sheet,
		TotalScore:     rec.TotalPoints,
		CreatedAt:      rec.CreatedAt,
		EditableUntil:  rec.EditableUntil,
	}
	q := `INSERT INTO evaluation (` + evaluationColumns + `)
		VALUES (:id, :client_id, :guard_id, :evaluation_date, :kpi_scores, :total_score, :created_at, :editable_until)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if uniqueViolated(err, "evaluation_guard_id_evaluation_date_key") {
			return evaluation.Record{}, evaluation.ErrDuplicateEvaluation
		}
		return evaluation.Record{}, errors.Wrap(err, "inserting evaluation")
	}
	return rec, nil
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, id string) (evaluation.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return evaluation.Record{}, evaluation.ErrNotFound
	}
	var row evaluationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+evaluationColumns+` FROM evaluation WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return evaluation.Record{}, evaluation.ErrNotFound
		}
		return evaluation.Record{}, errors.Wrap(err, "selecting evaluation")
	}
	return row.record(), nil
}

func (repo *evaluationRepository) EvaluationExists(ctx context.Context, guardID string, day time.Time) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM evaluation WHERE guard_id = $1 AND evaluation_date = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, guardID, core.Day(day)); err != nil {
		return false, errors.Wrap(err, "checking evaluation")
	}
	return exists, nil
}

func (repo *evaluationRepository) QueryEvaluations(ctx context.Context, filter evaluation.QueryFilter, ordering []core.DBOrdering) ([]evaluation.Record, error) {
	var w where
	if filter.ClientID != "" {
		w.add(`client_id = ?`, filter.ClientID)
	}
	if filter.GuardID != "" {
		w.add(`guard_id = ?`, filter.GuardID)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add(`created_at >= ?`, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		w.add(`created_at <= ?`, filter.CreatedTo)
	}

	q := `SELECT ` + evaluationColumns + ` FROM evaluation` + w.String() + orderBy(ordering)
	args := w.args
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []evaluationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting evaluations")
	}
	recs := make([]evaluation.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (repo *evaluationRepository) CountEvaluations(ctx context.Context) (int, error) {
	return count(ctx, repo.db, "evaluation")
}

func (repo *evaluationRepository) GuardAverages(ctx context.Context) ([]evaluation.GuardAverage, error) {
	avgs := make([]evaluation.GuardAverage, 0)
	q := `SELECT guard_id, COUNT(*) AS evaluation_count, AVG(total_score) AS average_total
		FROM evaluation GROUP BY guard_id ORDER BY guard_id`
	rows, err := repo.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "computing guard averages")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var avg evaluation.GuardAverage
		if err = rows.Scan(&avg.GuardID, &avg.Count, &avg.AverageTotal); err != nil {
			return nil, errors.Wrap(err, "scanning guard average")
		}
		avgs = append(avgs, avg)
	}
	return avgs, errors.Wrap(rows.Err(), "iterating guard averages")
}

func (repo *evaluationRepository) MonthlyCounts(ctx context.Context, since time.Time) ([]evaluation.MonthlyCount, error) {
	months := make([]evaluation.MonthlyCount, 0)
	q := `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*) AS count
		FROM evaluation WHERE created_at >= $1 GROUP BY month ORDER BY month`
	rows, err := repo.db.QueryxContext(ctx, q, since)
	if err != nil {
		return nil, errors.Wrap(err, "counting monthly evaluations")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var mc evaluation.MonthlyCount
		if err = rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, errors.Wrap(err, "scanning monthly count")
		}
		months = append(months, mc)
	}
	return months, errors.Wrap(rows.Err(), "iterating monthly counts")
}

func (repo *evaluationRepository) TotalCounts(ctx context.Context) ([]evaluation.TotalCount, error) {
	totals := make([]evaluation.TotalCount, 0)
	q := `SELECT total_score, COUNT(*) FROM evaluation GROUP BY total_score ORDER BY total_score`
	rows, err := repo.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "counting evaluations per total")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tc evaluation.TotalCount
		if err = rows.Scan(&tc.TotalPoints, &tc.Count); err != nil {
			return nil, errors.Wrap(err, "scanning total count")
		}
		totals = append(totals, tc)
	}
	return totals, errors.Wrap(rows.Err(), "iterating total counts")
}
