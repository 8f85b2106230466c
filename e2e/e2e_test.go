//go:build integration

package e2e_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/pollhttp"
	"github.com/adamwoolhether/pollhttp/client"
)

// -------------------------------------------------------------------------
// Types
// -------------------------------------------------------------------------

type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type itemResp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

var downloadContent = bytes.Repeat([]byte("hello, this is test download content!\n"), 4096)

func newTestApp(t *testing.T) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /echo", echoHandler)
	mux.HandleFunc("PUT /items/{id}/{name}", itemHandler)
	mux.HandleFunc("DELETE /items/{id}", deleteHandler)
	mux.HandleFunc("GET /error/not-found", notFoundHandler)
	mux.HandleFunc("GET /download", downloadHandler)
	mux.HandleFunc("GET /stream", streamHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL
}

func newClient(t *testing.T) *client.Client {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	c, err := pollhttp.NewClient(4, client.WithLogger(log), client.WithTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("building client: %v", err)
	}
	t.Cleanup(c.Close)

	return c
}

// await polls r until it settles, the way a caller without a blocking
// primitive would.
func await(t *testing.T, r *client.Response) client.State {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if st := r.Poll(); st != client.StatePending {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("request %s never settled", r.ID())
	return client.StatePending
}

// -------------------------------------------------------------------------
// Handlers
// -------------------------------------------------------------------------

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	var u user
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusCreated, u)
}

func itemHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, itemResp{
		ID:   r.PathValue("id"),
		Name: r.PathValue("name"),
	})
}

func deleteHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "widget not found", http.StatusNotFound)
}

func downloadHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(downloadContent)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(downloadContent)
}

func streamHandler(w http.ResponseWriter, _ *http.Request) {
	flusher := w.(http.Flusher)
	for i := range 50 {
		fmt.Fprintf(w, "event %02d\n", i)
		flusher.Flush()
		time.Sleep(time.Millisecond)
	}
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_JSONRoundTrip(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	sent := user{Name: "Alice", Email: "alice@test.com", Age: 30}

	b := c.NewRequest(baseURL + "/echo")
	_ = b.SetMethod("POST")
	_ = b.ExpectStatus(http.StatusCreated)
	if err := b.SetBodyJSON(sent); err != nil {
		t.Fatalf("encoding payload: %v", err)
	}

	r, err := b.Send()
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	if st := await(t, r); st != client.StateReady {
		t.Fatalf("expected ready, got %v: %v", st, r.Err())
	}

	var got user
	if err := r.DecodeJSON(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got != sent {
		t.Errorf("round-trip mismatch:\n  got:  %+v\n  want: %+v", got, sent)
	}
}

func TestE2E_PutAndDelete(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	put := c.NewRequest(baseURL + "/items/42/widget")
	_ = put.SetMethod("put")
	putResp, err := put.Send()
	if err != nil {
		t.Fatal(err)
	}

	del := c.NewRequest(baseURL + "/items/42")
	_ = del.SetMethod("delete")
	_ = del.ExpectStatus(http.StatusNoContent)
	delResp, err := del.Send()
	if err != nil {
		t.Fatal(err)
	}

	await(t, putResp)
	var got itemResp
	if err := putResp.DecodeJSON(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(itemResp{ID: "42", Name: "widget"}, got); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}

	if st := await(t, delResp); st != client.StateReady {
		t.Fatalf("expected ready delete, got %v: %v", st, delResp.Err())
	}
	_ = delResp.Discard()
}

func TestE2E_NotFound(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	b := c.NewRequest(baseURL + "/error/not-found")
	_ = b.ExpectStatus(http.StatusOK)
	r, err := b.Send()
	if err != nil {
		t.Fatal(err)
	}

	if st := await(t, r); st != client.StateFailed {
		t.Fatalf("expected failed, got %v", st)
	}

	var statusErr *client.UnexpectedStatusError
	if !errors.As(r.Err(), &statusErr) {
		t.Fatalf("expected UnexpectedStatusError, got %T: %v", r.Err(), r.Err())
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", statusErr.StatusCode, http.StatusNotFound)
	}
}

func TestE2E_StreamedEvents(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	r, err := c.NewRequest(baseURL + "/stream").Send()
	if err != nil {
		t.Fatal(err)
	}
	await(t, r)

	s, err := r.BodyStream()
	if err != nil {
		t.Fatal(err)
	}

	var got bytes.Buffer
	var polls int
	for {
		text, done, err := s.CollectString()
		if err != nil {
			t.Fatal(err)
		}
		got.WriteString(text)
		polls++
		if done {
			break
		}
		time.Sleep(time.Millisecond)
	}

	var want bytes.Buffer
	for i := range 50 {
		fmt.Fprintf(&want, "event %02d\n", i)
	}
	if diff := cmp.Diff(want.String(), got.String()); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}
	if polls < 2 {
		t.Errorf("expected the body to arrive over several polls, got %d", polls)
	}
}

func TestE2E_Download(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	sum := sha256.Sum256(downloadContent)
	dest := filepath.Join(t.TempDir(), "download.bin")

	r, err := c.NewRequest(baseURL + "/download").Send()
	if err != nil {
		t.Fatal(err)
	}
	await(t, r)

	s, err := r.RedirectToFile(dest,
		client.WithChecksum(sha256.New(), hex.EncodeToString(sum[:])),
		client.WithProgress(),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Wait(t.Context()); err != nil {
		t.Fatalf("redirect failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, downloadContent) {
		t.Errorf("downloaded %d bytes, want %d identical bytes", len(got), len(downloadContent))
	}
}

func TestE2E_ManyRequestsFewWorkers(t *testing.T) {
	baseURL := newTestApp(t)
	c := newClient(t)

	const n = 100
	responses := make([]*client.Response, 0, n)
	for i := range n {
		b := c.NewRequest(fmt.Sprintf("%s/items/%d/n%d", baseURL, i, i))
		_ = b.SetMethod("put")
		r, err := b.Send()
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		responses = append(responses, r)
	}

	for i, r := range responses {
		if st := await(t, r); st != client.StateReady {
			t.Fatalf("request %d: %v: %v", i, st, r.Err())
		}

		var got itemResp
		if err := r.DecodeJSON(&got); err != nil {
			t.Fatal(err)
		}
		if got.ID != strconv.Itoa(i) {
			t.Errorf("request %d answered with item %s", i, got.ID)
		}
	}
}
