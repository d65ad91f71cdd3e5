package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/graffic/clackquotes/internal/quotes"
	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateQuote(ctx context.Context, q quotes.NewQuote) (uuid.UUID, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockGateway) GetQuote(ctx context.Context, id string) (*quotes.Quote, error) {
	args := m.Called(ctx, id)
	if q := args.Get(0); q != nil {
		return q.(*quotes.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetRandomQuote(ctx context.Context) (*quotes.Quote, error) {
	args := m.Called(ctx)
	if q := args.Get(0); q != nil {
		return q.(*quotes.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) DeleteQuote(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockGateway) RecordMessage(ctx context.Context, messageID int64, quoteID string) error {
	return m.Called(ctx, messageID, quoteID).Error(0)
}

func (m *mockGateway) CastVote(ctx context.Context, b quotes.Ballot) (int, error) {
	args := m.Called(ctx, b)
	return args.Int(0), args.Error(1)
}

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
