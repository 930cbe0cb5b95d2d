package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
)

// NopLogger discards everything. Only *NopLogger is a core.Logger: services check their deps for nil.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}
func (*NopLogger) Fatal(string, ...interface{}) {}

func tstamp(createdAt []time.Time) time.Time {
	if len(createdAt) > 0 {
		return createdAt[0].UTC()
	}
	return time.Now().UTC()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	ts := tstamp(createdAt)
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGuard(t *testing.T, repo guard.Repository, guardID, name string, createdAt ...time.Time) guard.Guard {
	t.Helper()
	grd, err := repo.CreateGuard(context.Background(), guard.Guard{
		ID:        uuid.New().String(),
		GuardID:   guardID,
		Name:      name,
		CreatedAt: tstamp(createdAt),
	})
	if err != nil {
		t.Fatalf("CreateGuard() failed: %v", err)
	}
	return grd
}

func CreateClient(t *testing.T, repo client.Repository, clientID, name, email, pwd string, createdAt ...time.Time) client.Client {
	t.Helper()
	clt := client.Client{
		ID:                 uuid.New().String(),
		ClientID:           clientID,
		Name:               name,
		RepresentativeName: name + " Rep",
		Email:              email,
		CreatedAt:          tstamp(createdAt),
	}
	if pwd != "" {
		if err := clt.SetPassword(pwd); err != nil {
			t.Fatalf("CreateClient() failed: %v", err)
		}
	}
	clt, err := repo.CreateClient(context.Background(), clt)
	if err != nil {
		t.Fatalf("CreateClient() failed: %v", err)
	}
	return clt
}

// CreateEvaluation stores an evaluation of grd by clt on the day of createdAt.
func CreateEvaluation(
	t *testing.T,
	repo evaluation.Repository,
	clt client.Client,
	grd guard.Guard,
	scores map[string]float64,
	total float64,
	createdAt time.Time,
	window time.Duration,
) evaluation.Record {
	t.Helper()
	createdAt = createdAt.UTC()
	rec, err := repo.CreateEvaluation(context.Background(), evaluation.Record{
		ID:             uuid.New().String(),
		ClientID:       clt.ClientID,
		GuardID:        grd.GuardID,
		EvaluationDate: time.Date(createdAt.Year(), createdAt.Month(), createdAt.Day(), 0, 0, 0, 0, time.UTC),
		Sheet: evaluation.Sheet{
			RubricVersion:      "test",
			Scores:             scores,
			EvaluatorName:      clt.RepresentativeName,
			EvaluatorSignature: "signed",
			ClientName:         clt.Name,
			RepresentativeName: clt.RepresentativeName,
		},
		TotalPoints:   total,
		CreatedAt:     createdAt,
		EditableUntil: evaluation.EditDeadline(createdAt, window),
	})
	if err != nil {
		t.Fatalf("CreateEvaluation() failed: %v", err)
	}
	return rec
}
