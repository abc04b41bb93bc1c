package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("down") }

func TestCheckerRegistry_Status(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *CheckerRegistry)
		expected Status
	}{
		{"no checkers", func(r *CheckerRegistry) {}, StatusHealthy},
		{"all healthy", func(r *CheckerRegistry) {
			r.Register(NewCheckFunc("broker", ok))
		}, StatusHealthy},
		{"optional failure degrades", func(r *CheckerRegistry) {
			r.Register(NewCheckFunc("broker", ok))
			r.RegisterOptional(NewCheckFunc("inference", fail))
		}, StatusDegraded},
		{"required failure is unhealthy", func(r *CheckerRegistry) {
			r.RegisterOptional(NewCheckFunc("inference", fail))
			r.Register(NewCheckFunc("broker", fail))
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			tt.setup(r)
			assert.Equal(t, tt.expected, r.Check(context.Background()).Status)
		})
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewCheckerRegistry()
	r.Register(NewCheckFunc("broker", fail))

	router := gin.New()
	router.GET("/health", Handler(r))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Checks["broker"].Status)
	assert.Equal(t, "down", body.Checks["broker"].Message)
}
