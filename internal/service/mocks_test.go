package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/automsp/portal-server-go/internal/database"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/repository"
)

type mockPortalTokenRepo struct {
	mock.Mock
}

func (m *mockPortalTokenRepo) Create(ctx context.Context, params model.CreatePortalTokenParams) (*model.PortalToken, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalToken), args.Error(1)
}

func (m *mockPortalTokenRepo) FindByID(ctx context.Context, id string) (*model.PortalToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalToken), args.Error(1)
}

func (m *mockPortalTokenRepo) FindActiveByDigest(ctx context.Context, digest string) (*model.PortalTokenWithClient, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalTokenWithClient), args.Error(1)
}

func (m *mockPortalTokenRepo) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.PortalToken, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalToken), args.Error(1)
}

func (m *mockPortalTokenRepo) DeactivateActiveForHolder(ctx context.Context, clientID, holderEmail string) (int64, error) {
	args := m.Called(ctx, clientID, holderEmail)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPortalTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockPortalTokenRepo) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockPortalTokenRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPortalTokenRepo) WithTx(*sqlx.Tx) repository.PortalTokenRepository {
	return m
}

type mockClientRepo struct {
	mock.Mock
}

func (m *mockClientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockClientRepo) LockByID(ctx context.Context, id string) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockClientRepo) WithTx(*sqlx.Tx) repository.ClientRepository {
	return m
}

type mockMembershipRepo struct {
	mock.Mock
}

func (m *mockMembershipRepo) Find(ctx context.Context, userID, organizationID string) (*model.OrganizationMembership, error) {
	args := m.Called(ctx, userID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrganizationMembership), args.Error(1)
}

type mockTicketRepo struct {
	mock.Mock
}

func (m *mockTicketRepo) ListForPortal(ctx context.Context, clientID string, limit int) ([]model.PortalTicket, error) {
	args := m.Called(ctx, clientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalTicket), args.Error(1)
}

func (m *mockTicketRepo) Create(ctx context.Context, params model.CreateTicketParams) (*model.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

type mockRateLimiter struct {
	mock.Mock
}

func (m *mockRateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Get(1).(time.Time)
}

// fakeTxRunner runs fn without a transaction and counts calls.
type fakeTxRunner struct {
	calls int
	err   error
}

func (f *fakeTxRunner) WithTx(_ context.Context, fn database.TxFunc) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}
