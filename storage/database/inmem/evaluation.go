package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/rubric"
)

type evaluationRepository struct {
	db *DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func copyRecord(rec *evaluation.Record) evaluation.Record {
	r := *rec
	r.Sheet.Scores = make(map[string]float64, len(rec.Sheet.Scores))
	for k, v := range rec.Sheet.Scores {
		r.Sheet.Scores[k] = v
	}
	if rec.Sheet.Remarks != nil {
		r.Sheet.Remarks = make(map[string]string, len(rec.Sheet.Remarks))
		for k, v := range rec.Sheet.Remarks {
			r.Sheet.Remarks[k] = v
		}
	}
	return r
}

func (repo *evaluationRepository) exists(guardID string, day time.Time) bool {
	for _, rec := range repo.db.evaluations {
		if rec.GuardID == guardID && rec.EvaluationDate.Equal(day) {
			return true
		}
	}
	return false
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, rec evaluation.Record) (evaluation.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.guards[rec.GuardID]; !ok {
		return evaluation.Record{}, errors.Errorf("guard %q does not exist", rec.GuardID)
	}
	if _, ok := repo.db.clients[rec.ClientID]; !ok {
		return evaluation.Record{}, errors.Errorf("client %q does not exist", rec.ClientID)
	}
	if repo.exists(rec.GuardID, rec.EvaluationDate) {
		return evaluation.Record{}, evaluation.ErrDuplicateEvaluation
	}
	stored := copyRecord(&rec)
	repo.db.evaluations[rec.ID] = &stored
	return rec, nil
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, id string) (evaluation.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.evaluations[id]; ok {
		return copyRecord(rec), nil
	}
	return evaluation.Record{}, evaluation.ErrNotFound
}

func (repo *evaluationRepository) EvaluationExists(_ context.Context, guardID string, day time.Time) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.exists(guardID, core.Day(day)), nil
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter evaluation.QueryFilter, ordering []core.DBOrdering) ([]evaluation.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]evaluation.Record, 0, len(repo.db.evaluations))
	for _, rec := range repo.db.evaluations {
		if filter.ClientID != "" && rec.ClientID != filter.ClientID {
			continue
		}
		if filter.GuardID != "" && rec.GuardID != filter.GuardID {
			continue
		}
		if !filter.CreatedFrom.IsZero() && rec.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && rec.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		recs = append(recs, copyRecord(rec))
	}

	sort.SliceStable(recs, lessFuncs(ordering, func(i, j int, field string) int {
		a, b := recs[i], recs[j]
		switch field {
		case "evaluation_date":
			return compareTimes(a.EvaluationDate, b.EvaluationDate)
		case "total_score":
			return compareFloats(a.TotalPoints, b.TotalPoints)
		case "guard_id":
			return compareStrings(a.GuardID, b.GuardID)
		case "client_id":
			return compareStrings(a.ClientID, b.ClientID)
		default:
			return compareTimes(a.CreatedAt, b.CreatedAt)
		}
	}))

	if filter.Limit > 0 && len(recs) > filter.Limit {
		recs = recs[:filter.Limit]
	}
	return recs, nil
}

func (repo *evaluationRepository) CountEvaluations(context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.evaluations), nil
}

func (repo *evaluationRepository) GuardAverages(context.Context) ([]evaluation.GuardAverage, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[string][]float64)
	for _, rec := range repo.db.evaluations {
		totals[rec.GuardID] = append(totals[rec.GuardID], rec.TotalPoints)
	}
	avgs := make([]evaluation.GuardAverage, 0, len(totals))
	for guardID, ts := range totals {
		avgs = append(avgs, evaluation.GuardAverage{
			GuardID:      guardID,
			Count:        len(ts),
			AverageTotal: rubric.Average(ts...),
		})
	}
	sort.Slice(avgs, func(i, j int) bool { return avgs[i].GuardID < avgs[j].GuardID })
	return avgs, nil
}

func (repo *evaluationRepository) MonthlyCounts(_ context.Context, since time.Time) ([]evaluation.MonthlyCount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, rec := range repo.db.evaluations {
		if rec.CreatedAt.Before(since) {
			continue
		}
		counts[rec.CreatedAt.UTC().Format("2006-01")]++
	}
	months := make([]evaluation.MonthlyCount, 0, len(counts))
	for m, c := range counts {
		months = append(months, evaluation.MonthlyCount{Month: m, Count: c})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months, nil
}

func (repo *evaluationRepository) TotalCounts(context.Context) ([]evaluation.TotalCount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[float64]int)
	for _, rec := range repo.db.evaluations {
		counts[rec.TotalPoints]++
	}
	totals := make([]evaluation.TotalCount, 0, len(counts))
	for total, c := range counts {
		totals = append(totals, evaluation.TotalCount{TotalPoints: total, Count: c})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].TotalPoints < totals[j].TotalPoints })
	return totals, nil
}
