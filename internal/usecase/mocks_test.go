package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// MockComplaintRepository is a mock implementation of ports.ComplaintRepository
type MockComplaintRepository struct {
	mock.Mock
}

func (m *MockComplaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	args := m.Called(ctx, complaint)
	return args.Error(0)
}

func (m *MockComplaintRepository) FindByID(ctx context.Context, id string) (*domain.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) List(ctx context.Context, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) ApplyMutation(ctx context.Context, id string, mutation domain.Mutation) (*domain.Complaint, *domain.Complaint, error) {
	args := m.Called(ctx, id, mutation)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Complaint), args.Get(1).(*domain.Complaint), args.Error(2)
}

func (m *MockComplaintRepository) CountByStatus(ctx context.Context, filter domain.ComplaintFilter) (domain.StatusCounts, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.StatusCounts), args.Error(1)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, evt domain.ChangeEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}
