package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rosterlink/internal/grading"
	"rosterlink/internal/ingest"
	"rosterlink/pkg/contracts/domain"
)

// MockCanvasAPI is a mock for the CanvasAPI interface
type MockCanvasAPI struct {
	mock.Mock
}

func (m *MockCanvasAPI) FetchDiscussionPosts(ctx context.Context, courseID string) ([]domain.DiscussionPost, error) {
	args := m.Called(ctx, courseID)
	posts, _ := args.Get(0).([]domain.DiscussionPost)
	return posts, args.Error(1)
}

func (m *MockCanvasAPI) FetchCourseTeacherIDs(ctx context.Context, courseID string) ([]domain.UserID, error) {
	args := m.Called(ctx, courseID)
	ids, _ := args.Get(0).([]domain.UserID)
	return ids, args.Error(1)
}

func (m *MockCanvasAPI) CourseFetcher(courseID string) grading.SubmissionFetcher {
	args := m.Called(courseID)
	return args.Get(0).(grading.SubmissionFetcher)
}

// MockRegistrationSheet is a mock for the RegistrationSheet interface
type MockRegistrationSheet struct {
	mock.Mock
}

func (m *MockRegistrationSheet) Fetch(ctx context.Context) (ingest.ParseResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(ingest.ParseResult), args.Error(1)
}
