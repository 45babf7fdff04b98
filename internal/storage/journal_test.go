package storage

import (
	"context"
	"testing"

	"cdppage/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", "test_", nil)
	require.NoError(t, err)
	return j
}

func TestJournalRecordAndQuery(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	req := &traffic.Request{
		ID:            "A1",
		URL:           "https://example.com/c",
		Method:        "GET",
		ResourceType:  "Document",
		Headers:       traffic.Header{"accept": "*/*"},
		RedirectChain: []string{"https://example.com/a", "https://example.com/b"},
	}
	resp := &traffic.Response{
		RequestID:  "A1",
		Status:     200,
		StatusText: "OK",
		Headers:    traffic.Header{"content-type": "text/html"},
		State:      "finished",
	}
	require.NoError(t, j.Record(ctx, "s1", req, resp, false))
	require.NoError(t, j.Record(ctx, "s2", &traffic.Request{ID: "B1", URL: "https://other/"}, nil, true))

	rows, err := j.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://example.com/c", rows[0].URL)
	assert.Equal(t, 200, rows[0].Status)
	assert.Equal(t, 2, rows[0].RedirectHops)
	assert.JSONEq(t, `{"accept":"*/*"}`, rows[0].RequestHeaders)

	other, err := j.BySession(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.True(t, other[0].Canceled)
	assert.Zero(t, other[0].Status)
}

func TestJournalDropSession(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, "s1", &traffic.Request{ID: "A1"}, nil, false))
	require.NoError(t, j.Record(ctx, "s2", &traffic.Request{ID: "B1"}, nil, false))

	require.NoError(t, j.DropSession(ctx, "s1"))

	rows, err := j.BySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = j.BySession(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
