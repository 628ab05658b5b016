package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bassamadnan/rfimail/config"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// fakeAPI serves the handful of Gmail endpoints the client uses.
type fakeAPI struct {
	mu       sync.Mutex
	queries  []string
	modified []gmail.BatchModifyMessagesRequest
}

func (f *fakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/gmail/v1/users/{user}", func(r chi.Router) {
		r.Get("/threads", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.queries = append(f.queries, r.URL.Query().Get("q"))
			f.mu.Unlock()

			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, gmail.ListThreadsResponse{
					Threads:       []*gmail.Thread{{Id: "t-1"}},
					NextPageToken: "page-2",
				})
				return
			}
			writeJSON(w, gmail.ListThreadsResponse{Threads: []*gmail.Thread{{Id: "t-2"}, {Id: "t-broken"}}})
		})
		r.Get("/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == "t-broken" {
				http.Error(w, `{"error":{"code":404,"message":"gone"}}`, http.StatusNotFound)
				return
			}
			writeJSON(w, gmail.Thread{Id: id, Messages: []*gmail.Message{
				{Id: id + "-a", ThreadId: id},
				{Id: id + "-b", ThreadId: id},
			}})
		})
		r.Get("/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, gmail.Message{Id: chi.URLParam(r, "id"), ThreadId: "t-1"})
		})
		r.Post("/messages/batchModify", func(w http.ResponseWriter, r *http.Request) {
			var req gmail.BatchModifyMessagesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.modified = append(f.modified, req)
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/messages/{msg}/attachments/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("%PDF-1.4\n"))})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api.routes())
	t.Cleanup(server.Close)

	srv, err := gmail.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	require.NoError(t, err)

	cfg := config.GmailConfig{User: "me", Query: "in:inbox is:unread"}
	return newClient(srv, cfg, log.New(io.Discard)), api
}

func TestListThreadIDsFollowsPages(t *testing.T) {
	c, api := newTestClient(t)

	ids, err := c.ListThreadIDs(context.Background(), "label:inbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2", "t-broken"}, ids)
	assert.Equal(t, []string{"label:inbox", "label:inbox"}, api.queries)
}

func TestFetchStreamsThreadMessages(t *testing.T) {
	c, api := newTestClient(t)

	out := make(chan *gmail.Message, 16)
	require.NoError(t, c.Fetch(context.Background(), out))
	close(out)

	var ids []string
	for m := range out {
		ids = append(ids, m.Id)
	}
	// the broken thread is skipped, not fatal
	assert.Equal(t, []string{"t-1-a", "t-1-b", "t-2-a", "t-2-b"}, ids)
	assert.Equal(t, "in:inbox is:unread", api.queries[0])
}

func TestFetchStopsOnCancel(t *testing.T) {
	c, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *gmail.Message)
	done := make(chan error, 1)
	go func() { done <- c.Fetch(ctx, out) }()

	<-out
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMessage(t *testing.T) {
	c, _ := newTestClient(t)

	m, err := c.Message(context.Background(), "m-9")
	require.NoError(t, err)
	assert.Equal(t, "m-9", m.Id)
}

func TestMarkProcessedBatches(t *testing.T) {
	c, api := newTestClient(t)

	ids := make([]string, maxBatchModify+5)
	for i := range ids {
		ids[i] = "m"
	}
	require.NoError(t, c.MarkProcessed(context.Background(), ids))

	require.Len(t, api.modified, 2)
	assert.Len(t, api.modified[0].Ids, maxBatchModify)
	assert.Len(t, api.modified[1].Ids, 5)
	assert.Equal(t, []string{"UNREAD"}, api.modified[0].RemoveLabelIds)

	require.NoError(t, c.MarkProcessed(context.Background(), nil))
	assert.Len(t, api.modified, 2)
}

func TestAttachment(t *testing.T) {
	c, _ := newTestClient(t)

	data, err := c.Attachment(context.Background(), "m-1", "att-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\n", string(data))
}
