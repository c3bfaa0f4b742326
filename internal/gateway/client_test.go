package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/campus-notifier/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		BaseURL:    srv.URL + "/",
		Tokens:     StaticToken("tok"),
		MaxRetries: 2,
		RateLimit:  1000,
		RateBurst:  1000,
	})
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestClient_ListNotificationsSendsPagingAndBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/me", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		io.WriteString(w, `{"content":[{"id":1,"title":"a"},{"id":"2","title":"b"}],
			"totalElements":22,"totalPages":3,"number":2,"last":true}`)
	})

	page, err := c.ListNotifications(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, model.ID("1"), page.Content[0].ID)
	assert.False(t, page.HasMore(10))
}

func TestClient_UnreadCountAcceptsBareAndWrapped(t *testing.T) {
	body := "7"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/unread-count", r.URL.Path)
		io.WriteString(w, body)
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	body = `{"count": 3}`
	n, err = c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	body = `{"total": 3}`
	_, err = c.UnreadCount(context.Background())
	assert.Error(t, err)
}

func TestClient_MutationRoutes(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, "5"))
	require.NoError(t, c.MarkAllRead(ctx))
	require.NoError(t, c.Delete(ctx, "5"))
	require.NoError(t, c.ClearAll(ctx))
	require.NoError(t, c.SubscribeEvent(ctx, "42"))
	require.NoError(t, c.UnsubscribeEvent(ctx, "42"))

	assert.Equal(t, []string{
		"PUT /notifications/5/read",
		"PUT /notifications/mark-all-read",
		"DELETE /notifications/5",
		"DELETE /notifications/clear-all",
		"POST /notifications/subscribe/event/42",
		"DELETE /notifications/subscribe/event/42",
	}, got)
}

func TestClient_UpdatePreferencesSendsFullSet(t *testing.T) {
	var sent []model.Preference
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.UpdatePreferences(context.Background(), model.DefaultPreferences()))
	assert.Len(t, sent, len(model.KnownTypes))
}

func TestClient_AuthErrorOn401(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"token expired"}`)
	})

	_, err := c.UnreadCount(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "token expired")
	assert.False(t, IsTransient(err))
}

func TestClient_RetriesOn503ThenSucceeds(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "4")
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := c.MarkAllRead(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.True(t, IsTransient(err))
}

func TestClient_NotFoundIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAuthError(err))
	assert.False(t, IsTransient(err))
}

func TestClient_MissingTokenFailsWithoutRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.ListNotifications(context.Background(), 0, 10)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestPage_HasMoreWithoutMetadata(t *testing.T) {
	full := &Page{Content: make([]model.Notification, 10)}
	short := &Page{Content: make([]model.Notification, 3)}
	assert.True(t, full.HasMore(10))
	assert.False(t, short.HasMore(10))
	assert.True(t, (&Page{TotalPages: 3, Number: 1}).HasMore(10))
}

func TestClient_ListNotificationsToleratesOddTimestamps(t *testing.T) {
	for _, entry := range []string{
		`{"id":2,"title":"b","createdAt":1700000000000}`,
		`{"id":2,"title":"b","createdAt":[2024,1,1,10,0]}`,
		`{"id":2,"title":"b","readAt":[2024,1,1,10,0]}`,
	} {
		t.Run(entry, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"content":[{"id":1,"title":"a","createdAt":"2026-10-19T11:00:00Z"},`+
					entry+`],"totalElements":2,"totalPages":1,"last":true}`)
			})

			page, err := c.ListNotifications(context.Background(), 0, 10)
			require.NoError(t, err)
			require.Len(t, page.Content, 2)
			assert.Equal(t, "b", page.Content[1].Title)
			assert.NotEqual(t, "Invalid date", page.Content[1].Age(time.Now()))
		})
	}
}

func TestExpoJitter_StaysWithinCap(t *testing.T) {
	for _, attempt := range []int{0, 1, 5, 6, 35, 64, 1000} {
		d := expoJitter(attempt)
		assert.Positive(t, d, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 36*time.Second, "attempt %d", attempt)
	}
	assert.GreaterOrEqual(t, expoJitter(100), 24*time.Second)
}
