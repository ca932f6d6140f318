package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"keyfetch/internal/upstream"
	"keyfetch/loader"
)

// stubFetch resolves every key to {"key":"<key>"}, failing keys prefixed
// "missing" with a KeyError, and records batch sizes.
type stubFetch struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (s *stubFetch) fetch(_ context.Context, keys []string) ([]loader.Result[json.RawMessage], error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), keys...))
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	results := make([]loader.Result[json.RawMessage], len(keys))
	for i, key := range keys {
		if strings.HasPrefix(key, "missing") {
			results[i] = loader.Result[json.RawMessage]{Err: &upstream.KeyError{Key: key, Message: "no such key"}}
			continue
		}
		results[i] = loader.Result[json.RawMessage]{Value: json.RawMessage(fmt.Sprintf(`{"key":%q}`, key))}
	}
	return results, nil
}

func (s *stubFetch) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func newTestServer(t *testing.T, s *stubFetch) *httptest.Server {
	t.Helper()
	l := loader.New(s.fetch, loader.WithScheduler[string, json.RawMessage](loader.Immediate()))
	srv := httptest.NewServer(NewHandler(l, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_GetKey(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	resp, err := http.Get(srv.URL + "/keys/alpha")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["key"] != "alpha" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_GetKey_NotFound(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	resp, err := http.Get(srv.URL + "/keys/missing1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandler_GetKey_UpstreamError(t *testing.T) {
	srv := newTestServer(t, &stubFetch{err: fmt.Errorf("upstream down")})

	resp, err := http.Get(srv.URL + "/keys/alpha")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHandler_Batch(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	resp, err := http.Post(srv.URL+"/keys", "application/json", strings.NewReader(`["a","b","a"]`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var values []map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		t.Fatal(err)
	}
	if len(values) != 3 || values[0]["key"] != "a" || values[1]["key"] != "b" || values[2]["key"] != "a" {
		t.Errorf("values = %v", values)
	}
}

func TestHandler_Batch_BadBody(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	resp, err := http.Post(srv.URL+"/keys", "application/json", strings.NewReader(`{"not":"array"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_PrimeAndClear(t *testing.T) {
	fetch := &stubFetch{}
	srv := newTestServer(t, fetch)
	client := srv.Client()

	put := func(key, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/keys/"+key, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	resp := put("alpha", `{"primed":true}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("prime status = %d, want 204", resp.StatusCode)
	}

	// Primed key is served from cache, never hits the fetch.
	getResp, err := http.Get(srv.URL + "/keys/alpha")
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	var body map[string]bool
	if err := json.NewDecoder(getResp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body["primed"] {
		t.Errorf("body = %v, want primed value", body)
	}
	if fetch.batchCount() != 0 {
		t.Errorf("batches = %d, want 0", fetch.batchCount())
	}

	// Priming an existing key is rejected.
	resp = put("alpha", `{"primed":false}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-prime status = %d, want 409", resp.StatusCode)
	}

	// Clearing frees the key for a fresh load.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/keys/alpha", nil)
	if err != nil {
		t.Fatal(err)
	}
	delResp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", delResp.StatusCode)
	}

	getResp2, err := http.Get(srv.URL + "/keys/alpha")
	if err != nil {
		t.Fatal(err)
	}
	getResp2.Body.Close()
	if fetch.batchCount() != 1 {
		t.Errorf("batches after clear = %d, want 1", fetch.batchCount())
	}
}

func TestHandler_PrimeRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/keys/alpha", strings.NewReader(`{broken`))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_ClearAll(t *testing.T) {
	fetch := &stubFetch{}
	srv := newTestServer(t, fetch)

	if resp, err := http.Get(srv.URL + "/keys/alpha"); err != nil {
		t.Fatal(err)
	} else {
		resp.Body.Close()
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/keys", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	if resp, err := http.Get(srv.URL + "/keys/alpha"); err != nil {
		t.Fatal(err)
	} else {
		resp.Body.Close()
	}
	if fetch.batchCount() != 2 {
		t.Errorf("batches = %d, want 2", fetch.batchCount())
	}
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t, &stubFetch{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
