// Package mocks provides testify mocks of the domain ports.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// MockGenerator is a mock of domain.Generator.
type MockGenerator struct{ mock.Mock }

// Provider implements domain.Generator.
func (m *MockGenerator) Provider() string { return "mock" }

// Ready implements domain.Generator.
func (m *MockGenerator) Ready() error {
	args := m.Called()
	return args.Error(0)
}

// Generate implements domain.Generator.
func (m *MockGenerator) Generate(ctx domain.Context, req domain.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockFeedbackSource is a mock of domain.FeedbackSource.
type MockFeedbackSource struct{ mock.Mock }

// FeedbackHistory implements domain.FeedbackSource.
func (m *MockFeedbackSource) FeedbackHistory(ctx domain.Context) ([]domain.FeedbackRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]domain.FeedbackRecord)
	return recs, args.Error(1)
}

// MockSettingsSource is a mock of domain.SettingsSource.
type MockSettingsSource struct{ mock.Mock }

// Settings implements domain.SettingsSource.
func (m *MockSettingsSource) Settings(ctx domain.Context) (domain.AppSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.AppSettings), args.Error(1)
}
