package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDelivers(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Alert(context.Background(), Alert{
		RunID:  "01HX",
		Phrase: "ignore instructions",
		Reason: "guard",
		At:     time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "01HX", got.RunID)
	assert.Equal(t, "ignore instructions", got.Phrase)
}

func TestWebhookReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Alert(context.Background(), Alert{RunID: "x"})
	assert.Error(t, err)

	err = NewWebhook("http://127.0.0.1:1", 100*time.Millisecond).Alert(context.Background(), Alert{RunID: "x"})
	assert.Error(t, err)
}

func TestMultiJoinsErrors(t *testing.T) {
	calls := 0
	ok := Func(func(ctx context.Context, a Alert) error { calls++; return nil })
	bad := Func(func(ctx context.Context, a Alert) error { calls++; return errors.New("down") })

	err := Multi{ok, nil, bad, Nop{}, Log{}}.Alert(context.Background(), Alert{RunID: "r"})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)

	assert.NoError(t, Multi{ok}.Alert(context.Background(), Alert{}))
}
