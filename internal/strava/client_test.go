package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/torhovland/segmentor/internal/domain"
)

func activitiesServer(t *testing.T, total int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/athlete/activities" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Authorization Error","errors":[{"resource":"Athlete","field":"access_token","code":"invalid"}]}`))
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * perPage
		batch := make([]domain.RawActivity, 0, perPage)
		for i := start; i < total && i < start+perPage; i++ {
			batch = append(batch, domain.RawActivity{
				ID:             int64(1000 + i),
				Name:           fmt.Sprintf("Activity %d", i),
				StartDateLocal: "2023-06-01T14:30:00Z",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batch)
	}))
}

func TestFetchActivitiesEnumeratesAllPages(t *testing.T) {
	var calls int32
	srv := activitiesServer(t, 7, &calls)
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithPageSize(3))
	activities, err := client.FetchActivities(context.Background(), "good-token")
	require.NoError(t, err)
	require.Len(t, activities, 7)
	require.Equal(t, int64(1000), activities[0].ID)
	require.Equal(t, int64(1006), activities[6].ID)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchActivitiesStopsOnEmptyPage(t *testing.T) {
	var calls int32
	srv := activitiesServer(t, 4, &calls)
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithPageSize(2))
	activities, err := client.FetchActivities(context.Background(), "good-token")
	require.NoError(t, err)
	require.Len(t, activities, 4)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchActivitiesReturnsAPIError(t *testing.T) {
	var calls int32
	srv := activitiesServer(t, 4, &calls)
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	activities, err := client.FetchActivities(context.Background(), "expired-token")
	require.Nil(t, activities)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "Authorization Error", apiErr.Message)
}

func TestFetchActivitiesDiscardsPartialResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
			return
		}
		_ = json.NewEncoder(w).Encode([]domain.RawActivity{{ID: 1}, {ID: 2}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithPageSize(2))
	activities, err := client.FetchActivities(context.Background(), "any")
	require.Nil(t, activities)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.Equal(t, "slow down", apiErr.Message)
}

func TestFetchActivitiesHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithTimeout(50*time.Millisecond))
	_, err := client.FetchActivities(context.Background(), "good-token")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithPageSizeClamps(t *testing.T) {
	require.Equal(t, MaxPageSize, NewClient("", WithPageSize(500)).pageSize)
	require.Equal(t, 1, NewClient("", WithPageSize(0)).pageSize)
	require.Equal(t, DefaultBaseURL, NewClient("").baseURL)
}
