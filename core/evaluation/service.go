package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/rubric"
)

const (
	topPerformersLimit = 10
	recentLimit        = 100
	dashboardMonths    = 6
)

type (
	Repository interface {
		// CreateEvaluation returns ErrDuplicateEvaluation when the guard was already evaluated that day.
		CreateEvaluation(ctx context.Context, rec Record) (Record, error)
		GetEvaluation(ctx context.Context, id string) (Record, error)
		EvaluationExists(ctx context.Context, guardID string, day time.Time) (bool, error)
		// QueryEvaluations applies AND operation on available QueryFilter fields.
		QueryEvaluations(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		CountEvaluations(ctx context.Context) (int, error)
		// GuardAverages returns the evaluation count & average total per evaluated guard. GuardName is left empty.
		GuardAverages(ctx context.Context) ([]GuardAverage, error)
		// MonthlyCounts counts evaluations created since `since`, per month. Months without evaluations are omitted.
		MonthlyCounts(ctx context.Context, since time.Time) ([]MonthlyCount, error)
		// TotalCounts counts every evaluation per total score, by ascending total.
		TotalCounts(ctx context.Context) ([]TotalCount, error)
	}

	// Authenticator verifies the identity of the submitting client.
	Authenticator interface {
		Authenticate(ctx context.Context, clientID, pwd string) (client.Client, error)
		Count(ctx context.Context) (int, error)
	}

	// GuardDirectory resolves the evaluated guards.
	GuardDirectory interface {
		Get(ctx context.Context, guardID string) (guard.Guard, error)
		Count(ctx context.Context) (int, error)
	}

	// Recorder collects submission metrics.
	Recorder interface {
		EvaluationSubmitted(tier string, total float64)
		EvaluationRejected(reason string)
	}

	Options struct {
		Rubric     *rubric.Rubric
		Policy     CompletenessPolicy
		EditWindow time.Duration
		Metrics    Recorder
	}

	Service struct {
		repo    Repository
		clients Authenticator
		guards  GuardDirectory
		mailSvc core.EmailService
		logger  core.Logger
		metrics Recorder
		rubric  *rubric.Rubric
		policy  CompletenessPolicy
		window  time.Duration
		nowFunc func() time.Time
	}
)

func NewService(
	repo Repository,
	clients Authenticator,
	guards GuardDirectory,
	mailSvc core.EmailService,
	logger core.Logger,
	opts Options,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(clients, "clients"),
		vala.IsNotNil(guards, "guards"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	svc := &Service{
		repo:    repo,
		clients: clients,
		guards:  guards,
		mailSvc: mailSvc,
		logger:  logger,
		metrics: opts.Metrics,
		rubric:  opts.Rubric,
		policy:  opts.Policy,
		window:  opts.EditWindow,
		nowFunc: time.Now,
	}
	if svc.rubric == nil {
		svc.rubric = rubric.Default()
	}
	if svc.policy == "" {
		svc.policy = RequireAll
	}
	if svc.window <= 0 {
		svc.window = DefaultEditWindow
	}
	if svc.metrics == nil {
		svc.metrics = nopRecorder{}
	}
	return svc
}

func (svc *Service) Rubric() *rubric.Rubric { return svc.rubric }

func (svc *Service) EditWindow() time.Duration { return svc.window }

// Preview scores a partial draft without any completeness or signature requirement.
func (svc *Service) Preview(scores map[string]float64) Result {
	total := rubric.TotalPoints(scores)
	return Result{
		Scores:         scores,
		TotalPoints:    total,
		Recommendation: svc.rubric.RecommendationFor(total),
	}
}

// Submit verifies the client, validates the draft & persists it as a new Record.
func (svc *Service) Submit(ctx context.Context, sub Submission) (View, error) {
	view, err := svc.submit(ctx, sub)
	if err != nil {
		if reason := Reason(err); reason != "" {
			svc.metrics.EvaluationRejected(reason)
		}
		return View{}, err
	}
	svc.metrics.EvaluationSubmitted(string(view.Recommendation.Tier), view.TotalPoints)
	return view, nil
}

func (svc *Service) submit(ctx context.Context, sub Submission) (View, error) {
	now := svc.nowFunc().UTC()

	clt, err := svc.clients.Authenticate(ctx, sub.ClientID, sub.Password)
	if err != nil {
		return View{}, err
	}

	grd, err := svc.guards.Get(ctx, sub.GuardID)
	if err != nil {
		if core.IsNotFound(err) {
			return View{}, core.NewValidationError(ErrUnknownGuard, core.FieldError{Field: "guard_id", Error: ErrUnknownGuard.Error()})
		}
		return View{}, errors.Wrap(err, "finding guard")
	}

	res, err := Validate(svc.rubric, sub.Draft, svc.policy)
	if err != nil {
		return View{}, err
	}

	day, err := sub.Day(now)
	if err != nil {
		return View{}, err
	}
	exists, err := svc.repo.EvaluationExists(ctx, grd.GuardID, day)
	if err != nil {
		return View{}, errors.Wrap(err, "checking existing evaluation")
	}
	if exists {
		return View{}, ErrDuplicateEvaluation
	}

	rec := Record{
		ID:             uuid.New().String(),
		ClientID:       clt.ClientID,
		GuardID:        grd.GuardID,
		EvaluationDate: day,
		Sheet: Sheet{
			RubricVersion:      svc.rubric.Version(),
			Scores:             res.Scores,
			Remarks:            res.Remarks,
			EvaluatorName:      sub.EvaluatorName,
			EvaluatorSignature: sub.EvaluatorSignature,
			ClientName:         clt.Name,
			RepresentativeName: clt.RepresentativeName,
		},
		TotalPoints:   res.TotalPoints,
		CreatedAt:     now,
		EditableUntil: EditDeadline(now, svc.window),
	}
	if rec, err = svc.repo.CreateEvaluation(ctx, rec); err != nil {
		if errors.Cause(err) == ErrDuplicateEvaluation {
			return View{}, ErrDuplicateEvaluation
		}
		return View{}, errors.Wrap(err, "creating evaluation")
	}

	view := svc.view(rec, grd.Name, now)
	if clt.Email != "" {
		svc.mailSvc.SendMessages(svc.receipt(clt, grd, view))
	}
	svc.logger.Info(fmt.Sprintf("evaluation %s submitted by %s for %s: %s", rec.ID, clt.ClientID, grd.GuardID, view.Recommendation.Tier))
	return view, nil
}

func (svc *Service) view(rec Record, guardName string, now time.Time) View {
	return View{
		Record:         rec,
		GuardName:      guardName,
		Recommendation: svc.rubric.RecommendationFor(rec.TotalPoints),
		Editable:       IsEditable(rec.CreatedAt, now, svc.window),
	}
}

// views resolves guard names once per guard.
func (svc *Service) views(ctx context.Context, recs []Record) ([]View, error) {
	now := svc.nowFunc().UTC()
	names := make(map[string]string)
	views := make([]View, 0, len(recs))
	for _, rec := range recs {
		name, ok := names[rec.GuardID]
		if !ok {
			grd, err := svc.guards.Get(ctx, rec.GuardID)
			if err != nil && !core.IsNotFound(err) {
				return nil, errors.Wrap(err, "finding guard")
			}
			name = grd.Name
			names[rec.GuardID] = name
		}
		views = append(views, svc.view(rec, name, now))
	}
	return views, nil
}

func (svc *Service) Get(ctx context.Context, id string) (View, error) {
	rec, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return View{}, err
	}
	views, err := svc.views(ctx, []Record{rec})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]View, error) {
	filter.Clean()
	recs, err := svc.repo.QueryEvaluations(ctx, filter, core.AllowOrderings(ordering, OrderingColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	return svc.views(ctx, recs)
}

type GuardSummary struct {
	Guard                guard.Guard            `json:"guard"`
	Count                int                    `json:"evaluation_count"`
	AverageTotal         float64                `json:"average_total"`
	LatestRecommendation *rubric.Recommendation `json:"latest_recommendation,omitempty"`
	History              []View                 `json:"history"`
}

// GuardSummary gathers the evaluation history of a guard, newest first.
func (svc *Service) GuardSummary(ctx context.Context, guardID string) (GuardSummary, error) {
	grd, err := svc.guards.Get(ctx, guardID)
	if err != nil {
		return GuardSummary{}, err
	}
	history, err := svc.Query(ctx, QueryFilter{GuardID: grd.GuardID}, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return GuardSummary{}, err
	}

	sum := GuardSummary{Guard: grd, Count: len(history), History: history}
	if len(history) > 0 {
		totals := make([]float64, len(history))
		for i, v := range history {
			totals[i] = v.TotalPoints
		}
		sum.AverageTotal = rubric.Average(totals...)
		latest := history[0].Recommendation
		sum.LatestRecommendation = &latest
	}
	return sum, nil
}

type Dashboard struct {
	GuardCount      int                 `json:"guard_count"`
	ClientCount     int                 `json:"client_count"`
	EvaluationCount int                 `json:"evaluation_count"`
	TierBreakdown   map[rubric.Tier]int `json:"tier_breakdown"`
	TopPerformers   []GuardAverage      `json:"top_performers"`
	Monthly         []MonthlyCount      `json:"monthly"`
	Recent          []View              `json:"recent"`
}

// Dashboard aggregates the admin overview.
// Top performers are the guards with the lowest average penalty.
func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		dash Dashboard
		err  error
	)
	now := svc.nowFunc().UTC()

	if dash.GuardCount, err = svc.guards.Count(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting guards")
	}
	if dash.ClientCount, err = svc.clients.Count(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting clients")
	}
	if dash.EvaluationCount, err = svc.repo.CountEvaluations(ctx); err != nil {
		return Dashboard{}, errors.Wrap(err, "counting evaluations")
	}

	avgs, err := svc.repo.GuardAverages(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "computing guard averages")
	}
	dash.TopPerformers = svc.topPerformers(ctx, avgs)

	since := firstOfMonth(now).AddDate(0, -(dashboardMonths - 1), 0)
	counts, err := svc.repo.MonthlyCounts(ctx, since)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting monthly evaluations")
	}
	dash.Monthly = fillMonths(since, dashboardMonths, counts)

	totals, err := svc.repo.TotalCounts(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting evaluations per total")
	}
	dash.TierBreakdown = svc.tierBreakdown(totals)

	if dash.Recent, err = svc.Query(ctx, QueryFilter{Limit: recentLimit}, []core.DBOrdering{{Field: "created_at"}}); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

// tierBreakdown counts evaluations per recommended tier. Every tier is present.
func (svc *Service) tierBreakdown(totals []TotalCount) map[rubric.Tier]int {
	breakdown := make(map[rubric.Tier]int)
	for _, th := range svc.rubric.Thresholds() {
		breakdown[th.Tier] = 0
	}
	for _, tc := range totals {
		breakdown[svc.rubric.RecommendationFor(tc.TotalPoints).Tier] += tc.Count
	}
	return breakdown
}

func (svc *Service) topPerformers(ctx context.Context, avgs []GuardAverage) []GuardAverage {
	sort.SliceStable(avgs, func(i, j int) bool {
		if avgs[i].AverageTotal != avgs[j].AverageTotal {
			return avgs[i].AverageTotal < avgs[j].AverageTotal
		}
		if avgs[i].Count != avgs[j].Count {
			return avgs[i].Count > avgs[j].Count
		}
		return avgs[i].GuardID < avgs[j].GuardID
	})
	if len(avgs) > topPerformersLimit {
		avgs = avgs[:topPerformersLimit]
	}
	top := make([]GuardAverage, 0, len(avgs))
	for _, avg := range avgs {
		if grd, err := svc.guards.Get(ctx, avg.GuardID); err == nil {
			avg.GuardName = grd.Name
		}
		top = append(top, avg)
	}
	return top
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// fillMonths returns n consecutive months starting at `since`, 0 for months absent from counts.
func fillMonths(since time.Time, n int, counts []MonthlyCount) []MonthlyCount {
	byMonth := make(map[string]int, len(counts))
	for _, c := range counts {
		byMonth[c.Month] = c.Count
	}
	months := make([]MonthlyCount, 0, n)
	for i := 0; i < n; i++ {
		m := since.AddDate(0, i, 0).Format("2006-01")
		months = append(months, MonthlyCount{Month: m, Count: byMonth[m]})
	}
	return months
}

type nopRecorder struct{}

func (nopRecorder) EvaluationSubmitted(string, float64) {}
func (nopRecorder) EvaluationRejected(string)           {}
