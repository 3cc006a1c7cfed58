package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wave-alert-api/internal/dto"
	"github.com/noah-isme/wave-alert-api/internal/models"
	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
)

type reminderRunnerMock struct {
	summary *dto.RunSummary
	err     error
}

func (m *reminderRunnerMock) Run(ctx context.Context) (*dto.RunSummary, error) {
	return m.summary, m.err
}

type digestRunnerMock struct {
	got models.DigestType
}

func (m *digestRunnerMock) Run(ctx context.Context, digestType models.DigestType) (*dto.RunSummary, error) {
	m.got = digestType
	return &dto.RunSummary{Trigger: "digest-" + string(digestType)}, nil
}

type refresherMock struct {
	called bool
	got    *dto.AcquisitionRequest
	err    error
}

func (m *refresherMock) Refresh(ctx context.Context, req *dto.AcquisitionRequest) (*dto.RunSummary, error) {
	m.called = true
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RunSummary{Trigger: "refresh", Changes: &dto.ChangeSummary{Received: 1}}, nil
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTriggerHandlerRemindersReturnsSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	summary := &dto.RunSummary{Trigger: "reminders", RunID: "run-1", DispatchSummary: dto.DispatchSummary{Attempted: 2, Sent: 1, Failed: 1}}
	handler := NewTriggerHandler(&reminderRunnerMock{summary: summary}, nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/reminders", nil)

	handler.Reminders(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["runId"])
	assert.EqualValues(t, 1, data["sent"])
	assert.EqualValues(t, 1, data["failed"])
	assert.EqualValues(t, 2, data["attempted"])
}

func TestTriggerHandlerRemindersUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	err := appErrors.Clone(appErrors.ErrUnavailable, "failed to load sessions")
	handler := NewTriggerHandler(&reminderRunnerMock{err: err}, nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/reminders", nil)

	handler.Reminders(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "SERVICE_UNAVAILABLE", errBody["code"])
}

func TestTriggerHandlerDigestValidatesType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	digests := &digestRunnerMock{}
	handler := NewTriggerHandler(nil, digests, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/digests/weekly", nil)
	c.Params = gin.Params{{Key: "type", Value: "weekly"}}
	handler.Digest(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, digests.got)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/digests/evening", nil)
	c.Params = gin.Params{{Key: "type", Value: "evening"}}
	handler.Digest(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DigestEvening, digests.got)
}

func TestTriggerHandlerRefreshEmptyBodyUsesFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sync := &refresherMock{}
	handler := NewTriggerHandler(nil, nil, sync)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/refresh", nil)

	handler.Refresh(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sync.called)
	assert.Nil(t, sync.got)
}

func TestTriggerHandlerRefreshPassesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sync := &refresherMock{}
	handler := NewTriggerHandler(nil, nil, sync)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"from":"2026-10-17","to":"2026-10-18","sessions":[{"name":"Lesson","date":"2026-10-17","startTime":"09:00","level":"beginner","availableSpots":4}]}`
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/refresh", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Refresh(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, sync.got)
	assert.Equal(t, "2026-10-18", sync.got.To)
	require.Len(t, sync.got.Sessions, 1)
	assert.Equal(t, 4, *sync.got.Sessions[0].AvailableSpots)
}

func TestTriggerHandlerRefreshRejectsGarbage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sync := &refresherMock{}
	handler := NewTriggerHandler(nil, nil, sync)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/triggers/refresh", strings.NewReader(`invalid`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Refresh(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, sync.called)
}
