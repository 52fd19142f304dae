package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestList_Pagination(t *testing.T) {
	tests := []struct {
		name  string
		page  domain.Page
		total int64
		pages int
	}{
		{"exact pages", domain.Page{Page: 1, Limit: 10}, 30, 3},
		{"partial last page", domain.Page{Page: 2, Limit: 20}, 41, 3},
		{"empty", domain.Page{Page: 1, Limit: 20}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			List(c, []int{1, 2}, tt.page, tt.total)

			var body Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			require.NotNil(t, body.Pagination)
			assert.Equal(t, tt.pages, body.Pagination.TotalPages)
			assert.Equal(t, tt.total, body.Pagination.Total)
		})
	}
}

func TestError_Aborts(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, http.StatusConflict, "CONFLICT", "Email already registered", map[string]string{"field": "email"})

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t,
		`{"success":false,"error":{"code":"CONFLICT","message":"Email already registered","details":{"field":"email"}}}`,
		w.Body.String())
}
