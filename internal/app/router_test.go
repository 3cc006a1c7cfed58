package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Trigger:   config.TriggerConfig{Secret: "s3cret"},
		Engine: config.EngineConfig{
			Timezone:             "Europe/London",
			Tolerance:            45 * time.Minute,
			TriggerInterval:      30 * time.Minute,
			RunBudget:            5 * time.Second,
			Concurrency:          2,
			FillingFastThreshold: 3,
		},
		Channel: config.ChannelConfig{BotToken: "token", BaseURL: "http://127.0.0.1:0", Timeout: time.Second},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := assemble(testConfig(), zap.NewNop(), sqlx.NewDb(db, "sqlmock"), nil)
	require.NoError(t, err)
	return a.Router(), mock
}

func TestRouterHealthAndReadiness(t *testing.T) {
	router, mock := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	mock.ExpectPing()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouterTriggersRequireSecret(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/triggers/reminders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers/digests/weekly", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterReminderRunWithNoSessions(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.ExpectQuery("FROM sessions").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers/reminders", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trigger":"reminders"`)
	assert.Contains(t, w.Body.String(), `"processing_time_ms"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
