package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

type auditRecorderStub struct {
	logs []*models.AuditLog
}

func (s *auditRecorderStub) Create(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorderStub{}
	r := gin.New()
	setClaims := func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	}
	r.DELETE("/routines/:id", setClaims, Audit(recorder, nil, models.AuditActionRoutineDelete, models.AuditResourceRoutine), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.POST("/routines/save", Audit(recorder, nil, models.AuditActionRoutineSave, models.AuditResourceRoutine), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/routines/r1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/routines/save", nil))

	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionRoutineDelete, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "r1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":204`)
}
