package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdocs/plan-extractor/constants"
)

type fakeRenderer struct {
	pages [][]byte
	err   error
}

func (f *fakeRenderer) RenderPages(_ context.Context, _ []byte, _ constants.Format, maxPages int) ([][]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if maxPages > 0 && len(f.pages) > maxPages {
		return f.pages[:maxPages], nil
	}
	return f.pages, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, renderer PageRenderer) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000, // keep the limiter out of the way
	}, renderer, nil)
	return c, srv
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewClient(Config{}, &fakeRenderer{}, nil).Enabled())
	assert.True(t, NewClient(Config{APIKey: "k"}, &fakeRenderer{}, nil).Enabled())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestTranscribe_JoinsPagesWithHeaders(t *testing.T) {
	var page atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		n := page.Add(1)
		fmt.Fprint(w, chatResponse(fmt.Sprintf("Transcript of page %d", n)))
	}
	c, _ := newTestClient(t, handler, &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2")}})

	out, err := c.Transcribe(context.Background(), []byte("doc"), constants.PDF, 3)
	require.NoError(t, err)
	require.Len(t, out.Pages, 2)
	assert.Empty(t, out.Failures)
	assert.Equal(t,
		"--- Page 1 ---\nTranscript of page 1\n\n--- Page 2 ---\nTranscript of page 2",
		out.Text)
}

func TestTranscribe_PageFailureIsIsolated(t *testing.T) {
	var page atomic.Int32
	handler := func(w http.ResponseWriter, _ *http.Request) {
		if page.Add(1) == 1 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chatResponse("ROOM: Kitchen\nDIMENSIONS: 4.2 x 3.1"))
	}
	c, _ := newTestClient(t, handler, &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2")}})

	out, err := c.Transcribe(context.Background(), []byte("doc"), constants.PDF, 2)
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, 1, out.Failures[0].Page)
	require.Len(t, out.Pages, 1)
	assert.Equal(t, 2, out.Pages[0].Page)
	assert.Contains(t, out.Text, "--- Page 2 ---")
}

func TestTranscribe_StructuredRoomsExtracted(t *testing.T) {
	content := "ROOM: Kitchen\nDIMENSIONS: 4.2 x 3.1\n\n```json\n{\"rooms\":[{\"room\":\"kitchen\",\"length_m\":4.2,\"width_m\":3.1}]}\n```"
	handler := func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatResponse(content))
	}
	c, _ := newTestClient(t, handler, &fakeRenderer{pages: [][]byte{[]byte("p1")}})

	out, err := c.Transcribe(context.Background(), []byte("doc"), constants.PDF, 1)
	require.NoError(t, err)
	require.Len(t, out.Pages, 1)
	require.Len(t, out.Pages[0].Rooms, 1)
	assert.Equal(t, StructuredRoom{Room: "kitchen", LengthM: 4.2, WidthM: 3.1}, out.Pages[0].Rooms[0])

	// the fenced block is stripped from the transcript
	assert.NotContains(t, out.Pages[0].Text, "```")
	assert.Contains(t, out.Pages[0].Text, "ROOM: Kitchen")
}

func TestTranscribe_NoAPIKey(t *testing.T) {
	c := NewClient(Config{}, &fakeRenderer{}, nil)
	_, err := c.Transcribe(context.Background(), []byte("doc"), constants.PDF, 1)
	assert.Error(t, err)
}

func TestTranscribe_RenderFailure(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, &fakeRenderer{err: errors.New("pdftoppm produced no images")}, nil)
	_, err := c.Transcribe(context.Background(), []byte("doc"), constants.PDF, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render pages")
}

func TestParseStructuredRooms_InvalidBlockDropped(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"wrong types", "text\n```json\n{\"rooms\":[{\"room\":\"kitchen\",\"length_m\":\"big\",\"width_m\":3.1}]}\n```"},
		{"missing field", "text\n```json\n{\"rooms\":[{\"room\":\"kitchen\",\"length_m\":4.2}]}\n```"},
		{"extra property", "text\n```json\n{\"rooms\":[],\"extra\":true}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, cleaned := parseStructuredRooms(tt.text, testLogger())
			assert.Nil(t, rooms)
			assert.Equal(t, "text", cleaned)
		})
	}
}

func TestParseStructuredRooms_NoBlock(t *testing.T) {
	rooms, cleaned := parseStructuredRooms("plain transcript", testLogger())
	assert.Nil(t, rooms)
	assert.Equal(t, "plain transcript", cleaned)
}
