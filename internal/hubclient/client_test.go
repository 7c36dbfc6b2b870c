package hubclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			var req chessdto.CreateGameRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "blitz", req.GameName)
			_ = json.NewEncoder(w).Encode(chessdto.CreateGameResponse{GameID: 7})
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(chessdto.ListGamesResponse{Games: []chessdto.GameSummary{{GameID: 7, GameName: "blitz", State: "READY"}}})
		case http.MethodPut:
			var req chessdto.JoinGameRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, chessdto.JoinGameRequest{PlayerColor: "WHITE", GameID: 7}, req)
			_, _ = w.Write([]byte("{}"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("tok-1"))
	ctx := context.Background()

	id, err := c.CreateGame(ctx, "blitz")
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	require.NoError(t, c.JoinGame(ctx, 7, "WHITE"))
	games, err := c.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "blitz", games[0].GameName)
}

func TestClientDecodesDomainError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(chessdto.DomainError{Code: chessdto.CodeAlreadyTaken, Message: "Error: already taken"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).JoinGame(context.Background(), 1, "BLACK")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, chessdto.CodeAlreadyTaken, apiErr.Domain.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientRetriesIdempotentReads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chessdto.ListGamesResponse{})
	}))
	defer srv.Close()

	games, err := NewClient(srv.URL, WithRetry(3), WithTimeout(2*time.Second)).ListGames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, games)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetry(5)).CreateGame(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(0))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(3))
	assert.Equal(t, 3200*time.Millisecond, backoffDuration(40))
}
