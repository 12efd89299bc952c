package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
	"github.com/rollcall/rollcall/internal/repository/memory"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []model.VerificationEmail
}

func (q *recordingQueue) EnqueueAsync(job model.VerificationEmail) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

func (q *recordingQueue) Jobs() []model.VerificationEmail {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.VerificationEmail(nil), q.jobs...)
}

type fixture struct {
	store   *memory.Store
	queue   *recordingQueue
	metrics *metrics.InMemoryRecorder
	users   *UserService
	groups  *GroupService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	queue := &recordingQueue{}
	recorder := metrics.NewInMemory()
	return &fixture{
		store:   store,
		queue:   queue,
		metrics: recorder,
		users:   NewUserService(store, queue, nil, recorder),
		groups:  NewGroupService(store, nil, recorder),
	}
}

func (f *fixture) register(t *testing.T, email, username string) *model.User {
	t.Helper()
	user, err := f.users.RegisterUser(context.Background(), RegisterUserInput{
		Email:    email,
		Username: username,
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) storedUser(t *testing.T, id int64) *model.User {
	t.Helper()
	var user *model.User
	err := repository.WithUnitOfWork(context.Background(), f.store, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		user, err = uow.Users().Get(ctx, id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func (f *fixture) storedMembers(t *testing.T, groupID int64) []int64 {
	t.Helper()
	var members []int64
	err := repository.WithUnitOfWork(context.Background(), f.store, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		members, err = uow.Members().ListByGroup(ctx, groupID)
		return err
	})
	require.NoError(t, err)
	return members
}
