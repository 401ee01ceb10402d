package mpesa

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGateway serves the auth endpoint and records business calls.
type fakeGateway struct {
	server     *httptest.Server
	authCalls  atomic.Int32
	authStatus int
	expiresIn  string
	// authGate, when set, holds every auth response until it is closed.
	authGate chan struct{}

	mu       sync.Mutex
	calls    int
	bodies   []map[string]any
	headers  []http.Header
	business http.HandlerFunc
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{authStatus: http.StatusOK, expiresIn: "3599"}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		n := g.authCalls.Add(1)
		if g.authGate != nil {
			<-g.authGate
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" || g.authStatus != http.StatusOK {
			status := g.authStatus
			if status == http.StatusOK {
				status = http.StatusUnauthorized
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"errorMessage":"Invalid Authentication passed"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   g.expiresIn,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		g.mu.Lock()
		g.calls++
		g.bodies = append(g.bodies, body)
		g.headers = append(g.headers, r.Header.Clone())
		handler := g.business
		g.mu.Unlock()

		if handler == nil {
			_ = json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "0"})
			return
		}
		handler(w, r)
	})
	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) businessCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGateway) lastBody() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.bodies) == 0 {
		return nil
	}
	return g.bodies[len(g.bodies)-1]
}

func (g *fakeGateway) lastHeader() http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.headers) == 0 {
		return nil
	}
	return g.headers[len(g.headers)-1]
}

func testConfig(t *testing.T, baseURL string, overrides map[string]string) Config {
	t.Helper()
	values := validValues()
	values[KeyBaseURL] = baseURL
	for k, v := range overrides {
		values[k] = v
	}
	cfg, err := NewConfig(values)
	require.NoError(t, err)
	return cfg
}

func noBackoff(int) time.Duration { return 0 }
