package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"vidmerge/internal/api"
	"vidmerge/internal/artifact"
	"vidmerge/internal/logging"
	"vidmerge/internal/merge"
	"vidmerge/internal/staging"
	"vidmerge/internal/testsupport"
	"vidmerge/internal/videoid"
	"vidmerge/internal/videos"
)

type env struct {
	server *httptest.Server
	store  *artifact.MemoryStore
	orch   *merge.Orchestrator
	api    *api.Server
}

func newEnv(t *testing.T, opts api.Options) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	store := artifact.NewMemoryStore()
	enc := testsupport.NewFakeEncoder()
	area := staging.NewArea(cfg.Paths.StagingDir, logging.NewNop())
	orch := merge.New(store, enc, area, merge.Options{MaxDuration: cfg.MaxDuration()}, logging.NewNop())
	srv := api.New(videos.New(store, enc, area, logging.NewNop()), orch, opts, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		orch.Wait()
	})
	return &env{server: ts, store: store, orch: orch, api: srv}
}

func (e *env) upload(t *testing.T, field string, body []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", "ignored"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile(field, "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.server.URL+"/videos", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /videos: %v", err)
	}
	return resp
}

func (e *env) get(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeID(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var payload api.IDResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload.ID
}

func decodeError(t *testing.T, resp *http.Response, wantStatus int) api.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", wantStatus, resp.StatusCode, body)
	}
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload
}

func TestUploadMergeDownloadScenario(t *testing.T) {
	e := newEnv(t, api.Options{})

	a := decodeID(t, e.upload(t, "file", testsupport.FakeMP4("A")))
	b := decodeID(t, e.upload(t, "file", testsupport.FakeMP4("B")))
	for _, id := range []string{a, b} {
		if _, ok := e.store.Get(artifact.TierUploaded, videoid.ID(id)); !ok {
			t.Fatalf("expected %s in uploaded tier", id)
		}
	}

	c := decodeID(t, e.get(t, http.MethodGet, "/videos/merge/"+a+"/"+b))
	if c == a || c == b {
		t.Fatal("merge must mint a fresh id")
	}
	if ok, _ := e.store.Exists(context.Background(), artifact.TierMerged, videoid.ID(c)); !ok {
		t.Fatalf("expected %s in merged tier", c)
	}

	rejected := decodeError(t, e.get(t, http.MethodGet, "/videos/merge/"+c+"/"+a), http.StatusBadRequest)
	if rejected.Kind != "already_merged" || rejected.Error != "video already merged: "+c {
		t.Fatalf("unexpected rejection %+v", rejected)
	}

	resp := e.get(t, http.MethodGet, "/videos/"+c)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	want := append(append(testsupport.FakeMP4("A"), testsupport.FakeMP4("B")...), testsupport.OverlayMarker...)
	if !bytes.Equal(body, want) {
		t.Fatalf("unexpected merged body %q", body)
	}
	if got := resp.Header.Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("content type %q", got)
	}
	if got := resp.Header.Get("X-Video-Codec"); got != "h264" {
		t.Fatalf("X-Video-Codec = %q", got)
	}
	if got := resp.Header.Get("X-Video-Resolution"); got != "1280x720" {
		t.Fatalf("X-Video-Resolution = %q", got)
	}
}

func TestHeadReturnsHeadersOnly(t *testing.T) {
	e := newEnv(t, api.Options{})
	id := videoid.New()
	e.store.Put(artifact.TierUploaded, id, testsupport.FakeMP4("clip"))

	resp := e.get(t, http.MethodHead, "/videos/"+string(id))
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || len(body) != 0 {
		t.Fatalf("expected bodiless 200, got %d with %d bytes", resp.StatusCode, len(body))
	}
	if resp.Header.Get("X-Audio-Codec") != "aac" {
		t.Fatalf("missing metadata headers: %v", resp.Header)
	}
	if got := resp.Header.Get("Content-Length"); got != strconv.Itoa(len(testsupport.FakeMP4("clip"))) {
		t.Fatalf("content length %q", got)
	}
}

func TestDownloadErrors(t *testing.T) {
	e := newEnv(t, api.Options{})
	missing := string(videoid.New())

	bad := decodeError(t, e.get(t, http.MethodGet, "/videos/not-a-uuid"), http.StatusBadRequest)
	if bad.Kind != "malformed_id" {
		t.Fatalf("unexpected kind %q", bad.Kind)
	}
	script := decodeError(t, e.get(t, http.MethodGet, "/videos/%3Cscript%3Ealert(1)%3C"), http.StatusBadRequest)
	if script.Error != "malformed video id: id" {
		t.Fatalf("malformed input must not be echoed, got %q", script.Error)
	}
	notFound := decodeError(t, e.get(t, http.MethodGet, "/videos/"+missing), http.StatusNotFound)
	if notFound.Error != "video not found: "+missing {
		t.Fatalf("unexpected reason %q", notFound.Error)
	}

	resp := e.get(t, http.MethodHead, "/videos/"+missing)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("HEAD missing: %d", resp.StatusCode)
	}
}

func TestMergeRequestShape(t *testing.T) {
	e := newEnv(t, api.Options{})
	a, b := videoid.New(), videoid.New()
	e.store.Put(artifact.TierUploaded, a, testsupport.FakeMP4("A"))
	e.store.Put(artifact.TierUploaded, b, testsupport.FakeMP4("B"))
	absent := string(videoid.New())

	tests := []struct {
		name   string
		path   string
		status int
		kind   string
		reason string
	}{
		{"bare", "/videos/merge", 400, "missing_ids", ""},
		{"trailing slash", "/videos/merge/", 400, "missing_ids", ""},
		{"one id", "/videos/merge/" + string(a), 400, "missing_ids", ""},
		{"three ids", "/videos/merge/" + string(a) + "/" + string(b) + "/" + string(a), 400, "too_many_ids", ""},
		{"malformed second", "/videos/merge/" + string(a) + "/nope", 400, "malformed_id", "malformed video id: id2"},
		{"absent", "/videos/merge/" + string(a) + "/" + absent, 404, "not_found", "video not found: " + absent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeError(t, e.get(t, http.MethodGet, tt.path), tt.status)
			if got.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", got.Kind, tt.kind)
			}
			if tt.reason != "" && got.Error != tt.reason {
				t.Fatalf("reason = %q, want %q", got.Error, tt.reason)
			}
		})
	}
	if e.store.Len() != 2 {
		t.Fatal("rejected merges must not publish")
	}
}

func TestMergeRefusesHead(t *testing.T) {
	e := newEnv(t, api.Options{})
	resp := e.get(t, http.MethodHead, "/videos/merge/"+string(videoid.New())+"/"+string(videoid.New()))
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestMergeFailureIsGeneric(t *testing.T) {
	e := newEnv(t, api.Options{})
	a, b := videoid.New(), videoid.New()
	e.store.Put(artifact.TierUploaded, a, testsupport.FakeMP4("A"))
	e.store.Put(artifact.TierUploaded, b, testsupport.FakeMP4("B"))
	e.store.UploadErr = io.ErrUnexpectedEOF

	got := decodeError(t, e.get(t, http.MethodGet, "/videos/merge/"+string(a)+"/"+string(b)), http.StatusInternalServerError)
	if got.Error != "video processing failed" {
		t.Fatalf("server errors must not leak detail: %q", got.Error)
	}
}

func TestUploadRejections(t *testing.T) {
	e := newEnv(t, api.Options{MaxUploadBytes: 1024})

	garbage := decodeError(t, e.upload(t, "file", []byte("plain text")), http.StatusBadRequest)
	if garbage.Kind != "unreadable_media" || garbage.Error != "invalid video file" {
		t.Fatalf("unexpected garbage rejection %+v", garbage)
	}
	decodeError(t, e.upload(t, "attachment", testsupport.FakeMP4("A")), http.StatusBadRequest)
	decodeError(t, e.upload(t, "file", nil), http.StatusBadRequest)

	tooLarge := decodeError(t, e.upload(t, "file", testsupport.FakeMP4(strings.Repeat("x", 4096))), http.StatusRequestEntityTooLarge)
	if tooLarge.Kind != "payload_too_large" {
		t.Fatalf("unexpected kind %q", tooLarge.Kind)
	}

	resp, err := http.Post(e.server.URL+"/videos", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	decodeError(t, resp, http.StatusBadRequest)

	if e.store.Len() != 0 {
		t.Fatal("rejected uploads must not be stored")
	}
}

func TestRequestIDs(t *testing.T) {
	e := newEnv(t, api.Options{})

	resp := e.get(t, http.MethodGet, "/healthz")
	resp.Body.Close()
	minted := resp.Header.Get(api.RequestIDHeader)
	if len(minted) != 36 {
		t.Fatalf("expected minted request id, got %q", minted)
	}

	supplied := string(videoid.New())
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+"/healthz", nil)
	req.Header.Set(api.RequestIDHeader, supplied)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(api.RequestIDHeader) != supplied {
		t.Fatal("expected supplied request id to be echoed")
	}

	req.Header.Set(api.RequestIDHeader, "<script>")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(api.RequestIDHeader); got == "<script>" || len(got) != 36 {
		t.Fatalf("expected replaced request id, got %q", got)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	e := newEnv(t, api.Options{ShutdownTimeout: time.Second})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.api.Serve(ctx, listener) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + listener.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
