package marketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
)

func TestFacebookPublisher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/page1/feed"), r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "New MC for sale", r.Form.Get("message"))
		assert.Equal(t, "https://app/listings/3", r.Form.Get("link"))
		assert.Equal(t, "tok", r.Form.Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"page1_555"}`))
	}))
	t.Cleanup(srv.Close)

	p := NewFacebookPublisher(srv.URL, "page1", "tok", time.Second)
	assert.Equal(t, "facebook", p.Name())

	id, err := p.Publish(context.Background(), "New MC for sale", "https://app/listings/3")
	require.NoError(t, err)
	assert.Equal(t, "page1_555", id)

	_, err = NewFacebookPublisher(srv.URL, "", "", time.Second).Publish(context.Background(), "x", "")
	assert.Error(t, err)
}

func TestFacebookPublisher_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := NewFacebookPublisher(srv.URL, "page1", "expired", time.Second).Publish(context.Background(), "x", "")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindServiceUnavailable, appErr.Kind)
}

func TestTelegramPublisher(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botBOT/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "@channel", r.PostForm.Get("chat_id"))
		assert.Equal(t, "hello\n\nhttps://link", r.PostForm.Get("text"))
		if fail {
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":77,"date":1700000000,"chat":{"id":-1001,"type":"channel"}}}`))
	}))
	t.Cleanup(srv.Close)

	p := NewTelegramPublisher(srv.URL, "BOT", "@channel", time.Second)
	assert.Equal(t, "telegram", p.Name())
	id, err := p.Publish(context.Background(), "hello", "https://link")
	require.NoError(t, err)
	assert.Equal(t, "77", id)

	fail = true
	_, err = p.Publish(context.Background(), "hello", "https://link")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindServiceUnavailable, appErr.Kind)

	_, err = NewTelegramPublisher(srv.URL, "", "", time.Second).Publish(context.Background(), "x", "")
	assert.Error(t, err)
}

func TestTelegramPublisher_NumericChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "-1001234", r.PostForm.Get("chat_id"))
		w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":1700000000,"chat":{"id":-1001234,"type":"supergroup"}}}`))
	}))
	t.Cleanup(srv.Close)

	id, err := NewTelegramPublisher(srv.URL, "BOT", "-1001234", time.Second).Publish(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "5", id)
}

func TestGHLClient_PushLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, ghlVersion, r.Header.Get("Version"))

		var c ghlContact
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		assert.Equal(t, "loc", c.LocationID)
		assert.Equal(t, "Jordan", c.FirstName)
		assert.Equal(t, "De La Cruz", c.LastName)
		assert.Equal(t, []string{"consultation"}, c.Tags)
		w.Write([]byte(`{"contact":{"id":"ct_1"}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewGHLClient(srv.URL, "key", "loc", time.Second)
	id, err := c.PushLead(context.Background(), domain.Lead{
		Name:  "Jordan De La Cruz",
		Email: "j@example.com",
		Tags:  []string{"consultation"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ct_1", id)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"  Ana   Maria Lopez ", "Ana", "Maria Lopez"},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
