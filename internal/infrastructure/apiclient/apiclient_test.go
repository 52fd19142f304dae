package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"id":"42"}`))
		case "/bad-json":
			w.Write([]byte(`{`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	var out struct {
		ID string `json:"id"`
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	require.NoError(t, DoJSON(ctx, srv.Client(), "test", req, &out))
	assert.Equal(t, "42", out.ID)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/bad-json", nil)
	assert.Error(t, DoJSON(ctx, srv.Client(), "test", req, &out))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/fail", nil)
	err := DoJSON(ctx, srv.Client(), "test", req, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "upstream down", se.Body)
}
