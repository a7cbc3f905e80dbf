package leaderboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "bot", "key", 2*time.Second)
	c.backoff = time.Millisecond
	return c
}

func TestRanksMatchesUsernamesCaseInsensitively(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/API_GetLeaderboardEntries.php", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("i"))
		assert.Equal(t, "key", r.URL.Query().Get("y"))
		fmt.Fprint(w, `{"Count":3,"Total":3,"Results":[
			{"User":"Alice","Rank":1,"Score":900,"FormattedScore":"0:09.00"},
			{"User":"carol","Rank":2,"Score":800,"FormattedScore":"0:08.00"},
			{"User":"BOB","Rank":3,"Score":700,"FormattedScore":"0:07.00"}]}`)
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Ranks(context.Background(), 1, 42, []string{"bob", "alice", "dave"})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{Username: "bob", Rank: 3, Score: 700, FormattedScore: "0:07.00"}, entries[0])
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, "dave", entries[2].Username)
	assert.False(t, entries[2].Ranked())
}

func TestRanksPaginatesUntilAllFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("o"))
		fmt.Fprint(w, `{"Count":500,"Total":1200,"Results":[`)
		for i := 0; i < pageSize; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			rank := offset + i + 1
			fmt.Fprintf(w, `{"User":"user%d","Rank":%d,"Score":%d}`, rank, rank, 10000-rank)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Ranks(context.Background(), 1, 7, []string{"user3", "user750"})
	require.NoError(t, err)
	assert.Equal(t, 3, entries[0].Rank)
	assert.Equal(t, 750, entries[1].Rank)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRanksFailsWhenPageLimitHit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("o"))
		fmt.Fprint(w, `{"Count":500,"Total":100000,"Results":[`)
		for i := 0; i < pageSize; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			rank := offset + i + 1
			fmt.Fprintf(w, `{"User":"user%d","Rank":%d,"Score":%d}`, rank, rank, 100000-rank)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxPages = 2

	// user5000 стоит дальше второй страницы: это не «нет результата»
	_, err := c.Ranks(context.Background(), 1, 7, []string{"user3", "user5000"})
	require.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	entries, err := c.Ranks(context.Background(), 1, 7, []string{"user3", "user999"})
	require.NoError(t, err)
	assert.Equal(t, 999, entries[1].Rank)
}

func TestRanksRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"Count":1,"Total":1,"Results":[{"User":"a","Rank":1,"Score":1}]}`)
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Ranks(context.Background(), 1, 1, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRanksGivesUpOnClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Ranks(context.Background(), 1, 1, []string{"a"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("i") == "0" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"Title":"Super Mario Bros.","ConsoleName":"NES/Famicom"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	g, err := c.Game(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Super Mario Bros.", g.Title)

	_, err = c.Game(context.Background(), 0)
	assert.Error(t, err)
}
