package job_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"finsight/backend/features/job"
	"finsight/backend/internal/config"
)

func TestHandler_List_ServiceError(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil)
	handler := job.NewHandler(svc)

	mockRepo.On("List", mock.Anything).Return(nil, errors.New("database error"))

	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestHandler_List_NilBecomesEmptyArray(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil)
	handler := job.NewHandler(svc)

	mockRepo.On("List", mock.Anything).Return([]job.ExtractionJob(nil), nil)

	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestHandler_Get_ServiceError(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil)
	handler := job.NewHandler(svc)

	mockRepo.On("Get", mock.Anything, "job-1").Return(nil, errors.New("db error"))

	req := httptest.NewRequest("GET", "/jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}

func TestHandler_Retry_PublishError(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockHandlerPublisher)
	svc := job.NewService(mockRepo, mockPub)
	handler := job.NewHandler(svc)

	jobID := "publish-fail-job"
	j := &job.ExtractionJob{
		ID:      jobID,
		Status:  job.StatusFailed,
		Payload: []byte(`{"document_id":"doc-1"}`),
	}

	mockRepo.On("Get", mock.Anything, jobID).Return(j, nil)
	mockPub.On("Publish", config.TopicIngestTask, mock.Anything).Return(errors.New("nsq error"))

	req := httptest.NewRequest("POST", "/jobs/"+jobID+"/retry", nil)
	req.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}
