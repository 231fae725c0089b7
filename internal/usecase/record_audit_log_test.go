package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

func TestRecordAuditLogUseCase_Execute_Success(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	mockPublisher := new(MockAuditEventPublisher)
	uc := NewRecordAuditLogUseCase(mockRepo, mockPublisher, nil)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.AuditLogEntry")).Return(nil)
	mockPublisher.On("Publish", mock.Anything, mock.AnythingOfType("*model.AuditLogEntry")).Return(nil)

	output, err := uc.Execute(context.Background(), RecordAuditLogInput{
		EntityType: model.EntityTypeConfiguration,
		EntityID:   "cfg-1",
		Action:     model.AuditActionUpdate,
		OldValue:   ptr("100"),
		NewValue:   ptr("200"),
		UserID:     "operator@example.com",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, output.ID)
	assert.False(t, output.RecordedAt.IsZero())
	mockRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestRecordAuditLogUseCase_Execute_DBError(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	mockPublisher := new(MockAuditEventPublisher)
	uc := NewRecordAuditLogUseCase(mockRepo, mockPublisher, nil)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.AuditLogEntry")).
		Return(errors.New("db error"))

	output, err := uc.Execute(context.Background(), RecordAuditLogInput{
		EntityType: model.EntityTypeDeployment,
		EntityID:   "dep-1",
		Action:     model.AuditActionExecute,
		UserID:     "operator@example.com",
	})

	assert.Error(t, err)
	assert.Nil(t, output)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRecordAuditLogUseCase_Execute_PublishErrorIgnored(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	mockPublisher := new(MockAuditEventPublisher)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	uc := NewRecordAuditLogUseCase(mockRepo, mockPublisher, logger)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.AuditLogEntry")).Return(nil)
	mockPublisher.On("Publish", mock.Anything, mock.AnythingOfType("*model.AuditLogEntry")).
		Return(errors.New("kafka unavailable"))

	output, err := uc.Execute(context.Background(), RecordAuditLogInput{
		EntityType: model.EntityTypeFeatureFlag,
		EntityID:   "flag-1",
		Action:     model.AuditActionCreate,
		UserID:     "operator@example.com",
	})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Contains(t, logs.String(), `"msg":"failed to publish audit event"`)
	assert.Contains(t, logs.String(), "kafka unavailable")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

func TestSearchAuditLogsUseCase_Execute_Defaults(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	uc := NewSearchAuditLogsUseCase(mockRepo)

	logs := []*model.AuditLogEntry{{ID: "a1"}, {ID: "a2"}}
	mockRepo.On("Search", mock.Anything, repository.AuditLogSearchParams{
		EntityID: "cfg-1",
		Page:     1,
		PageSize: 50,
	}).Return(logs, 120, nil)

	output, err := uc.Execute(context.Background(), SearchAuditLogsInput{EntityID: "cfg-1"})

	assert.NoError(t, err)
	assert.Len(t, output.Logs, 2)
	assert.Equal(t, 120, output.TotalCount)
	assert.True(t, output.HasNext)
	mockRepo.AssertExpectations(t)
}

func TestSearchAuditLogsUseCase_Execute_PageSizeCapped(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	uc := NewSearchAuditLogsUseCase(mockRepo)

	mockRepo.On("Search", mock.Anything, mock.MatchedBy(func(p repository.AuditLogSearchParams) bool {
		return p.PageSize == 200 && p.Page == 2
	})).Return([]*model.AuditLogEntry{}, 0, nil)

	output, err := uc.Execute(context.Background(), SearchAuditLogsInput{Page: 2, PageSize: 1000})

	assert.NoError(t, err)
	assert.False(t, output.HasNext)
	mockRepo.AssertExpectations(t)
}

func TestSearchAuditLogsUseCase_Execute_InvalidRange(t *testing.T) {
	mockRepo := new(MockAuditLogRepository)
	uc := NewSearchAuditLogsUseCase(mockRepo)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := uc.Execute(context.Background(), SearchAuditLogsInput{From: &from, To: &to})

	assert.ErrorIs(t, err, ErrValidationFailed)
	mockRepo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}
