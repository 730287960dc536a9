package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"bsm/internal/domain"
)

// serverFeed serves a mutable server list.
type serverFeed struct {
	mu      sync.Mutex
	servers []domain.ServerRecord
	status  int
}

func newServerFeed(t *testing.T, servers ...domain.ServerRecord) (*serverFeed, *httptest.Server) {
	t.Helper()
	feed := &serverFeed{servers: servers, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		if feed.status != http.StatusOK {
			w.WriteHeader(feed.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(feed.servers)
	}))
	t.Cleanup(srv.Close)
	return feed, srv
}

func (f *serverFeed) set(servers ...domain.ServerRecord) {
	f.mu.Lock()
	f.servers = servers
	f.mu.Unlock()
}

type mattermostPost struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

// mattermostLog is a fake Mattermost REST API recording posts.
type mattermostLog struct {
	mu       sync.Mutex
	posts    []mattermostPost
	channels map[string]bool
}

func newMattermost(t *testing.T, channels ...string) (*mattermostLog, *httptest.Server) {
	t.Helper()
	log := &mattermostLog{channels: make(map[string]bool)}
	for _, channel := range channels {
		log.channels[channel] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer mm-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v4/channels/"):
			log.mu.Lock()
			ok := log.channels[strings.TrimPrefix(r.URL.Path, "/api/v4/channels/")]
			log.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"id":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v4/posts":
			var post mattermostPost
			if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.mu.Lock()
			log.posts = append(log.posts, post)
			id := len(log.posts)
			log.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = fmt.Fprintf(w, `{"id":"post-%d"}`, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return log, srv
}

func (l *mattermostLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posts)
}

func (l *mattermostLog) snapshot() []mattermostPost {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]mattermostPost, len(l.posts))
	copy(out, l.posts)
	return out
}

func (l *mattermostLog) addChannel(channel string) {
	l.mu.Lock()
	l.channels[channel] = true
	l.mu.Unlock()
}
