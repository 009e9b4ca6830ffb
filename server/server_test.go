package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"line-comicbot/linebot"
	"line-comicbot/pipeline"
	"line-comicbot/pkg/gallery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "channel-secret"

type fakeDispatcher struct {
	jobs []pipeline.Job
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job pipeline.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeGallery struct {
	objects []gallery.BlobMeta
	err     error
	calls   int
}

func (f *fakeGallery) ListAll(context.Context) ([]gallery.BlobMeta, error) {
	f.calls++
	return f.objects, f.err
}

func newTestServer(d *fakeDispatcher, g *fakeGallery) *Server {
	s := New(&Config{
		Dispatcher:    d,
		Gallery:       g,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		ChannelSecret: testSecret,
		GalleryLimit:  100,
	})
	s.newID = func() string { return "delivery-1" }
	return s
}

func postWebhook(t *testing.T, s *Server, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(linebot.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["status"]
}

const imageBody = `{"destination":"U0","events":[{"type":"message","replyToken":"rt1","source":{"type":"user","userId":"U1"},"message":{"id":"m1","type":"image"}}]}`

func TestWebhookAcceptsSignedDelivery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantKind   pipeline.Kind
	}{
		{name: "image", body: imageBody, wantStatus: "processing_image", wantKind: pipeline.KindImage},
		{
			name:       "text",
			body:       `{"events":[{"type":"message","replyToken":"rt","source":{"type":"user","userId":"U1"},"message":{"id":"m2","type":"text","text":"Codename:deadbeef1"}}]}`,
			wantStatus: "processing_text",
			wantKind:   pipeline.KindText,
		},
		{
			name:       "follow",
			body:       `{"events":[{"type":"follow","replyToken":"rt","source":{"type":"user","userId":"U1"}}]}`,
			wantStatus: "welcomed",
			wantKind:   pipeline.KindFollow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			s := newTestServer(d, &fakeGallery{})

			rec := postWebhook(t, s, tt.body, linebot.Sign(testSecret, []byte(tt.body)))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantStatus, decodeStatus(t, rec))

			require.Len(t, d.jobs, 1)
			assert.Equal(t, tt.wantKind, d.jobs[0].Kind)
			assert.Equal(t, "delivery-1", d.jobs[0].DeliveryID)
		})
	}
}

func TestWebhookIgnoredNotDispatched(t *testing.T) {
	d := &fakeDispatcher{}
	s := newTestServer(d, &fakeGallery{})
	body := `{"events":[{"type":"unfollow","source":{"type":"user","userId":"U1"}}]}`

	rec := postWebhook(t, s, body, linebot.Sign(testSecret, []byte(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeStatus(t, rec))
	assert.Empty(t, d.jobs)
}

func TestWebhookRejections(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		body      string
		signature string
		secret    string
		want      int
	}{
		{name: "wrong method", method: http.MethodGet, secret: testSecret, want: http.StatusMethodNotAllowed},
		{name: "secret not configured", method: http.MethodPost, body: imageBody, signature: "x", want: http.StatusInternalServerError},
		{name: "missing signature", method: http.MethodPost, body: imageBody, secret: testSecret, want: http.StatusBadRequest},
		{name: "signed with other secret", method: http.MethodPost, body: imageBody, signature: linebot.Sign("other", []byte(imageBody)), secret: testSecret, want: http.StatusUnauthorized},
		{name: "garbage signature", method: http.MethodPost, body: imageBody, signature: "!!!", secret: testSecret, want: http.StatusUnauthorized},
		{name: "bad json", method: http.MethodPost, body: "{", signature: linebot.Sign(testSecret, []byte("{")), secret: testSecret, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			g := &fakeGallery{}
			s := newTestServer(d, g)
			s.channelSecret = tt.secret

			req := httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set(linebot.SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, d.jobs, "rejected deliveries must not reach the pipeline")
			assert.Zero(t, g.calls)
		})
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	d := &fakeDispatcher{}
	s := newTestServer(d, &fakeGallery{})
	body := strings.Repeat("a", maxWebhookBody+1)

	rec := postWebhook(t, s, body, linebot.Sign(testSecret, []byte(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, d.jobs)
}

func TestWebhookDispatchFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("redis down")}
	s := newTestServer(d, &fakeGallery{})

	rec := postWebhook(t, s, imageBody, linebot.Sign(testSecret, []byte(imageBody)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type imagesBody struct {
	Debug *struct {
		AllFiles   []string `json:"allFiles"`
		TotalFiles int      `json:"totalFiles"`
	} `json:"debug"`
	Images []struct {
		CreatedAt time.Time `json:"created_at"`
		Name      string    `json:"name"`
		URL       string    `json:"url"`
		Size      int64     `json:"size"`
	} `json:"images"`
	Count   int  `json:"count"`
	Success bool `json:"success"`
}

func getImages(t *testing.T, s *Server) (*httptest.ResponseRecorder, imagesBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	var body imagesBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestImagesNewestFirst(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	g := &fakeGallery{objects: []gallery.BlobMeta{
		{Name: "2025-01-01T00-00-00-000Z_original.png", URL: "u1", CreatedAt: day.Add(-24 * time.Hour), Size: 10},
		{Name: "2025-01-02T00-00-00-000Z_preview.jpg", URL: "u2", CreatedAt: day},
		{Name: "2025-01-03T00-00-00-000Z_original.jpg", URL: "u3", CreatedAt: day.Add(24 * time.Hour), Size: 30},
		{Name: "notes_original.txt", URL: "u4", CreatedAt: day.Add(48 * time.Hour)},
	}}
	s := newTestServer(&fakeDispatcher{}, g)

	rec, body := getImages(t, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Images, 2)
	assert.Equal(t, "2025-01-03T00-00-00-000Z_original.jpg", body.Images[0].Name)
	assert.Equal(t, int64(30), body.Images[0].Size)
	assert.Equal(t, "2025-01-01T00-00-00-000Z_original.png", body.Images[1].Name)
	assert.Nil(t, body.Debug)
}

func TestImagesEmptyIncludesDebug(t *testing.T) {
	g := &fakeGallery{objects: []gallery.BlobMeta{{Name: "2025-01-02T00-00-00-000Z_preview.jpg"}}}
	s := newTestServer(&fakeDispatcher{}, g)

	rec, body := getImages(t, s)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, body.Count)
	assert.NotNil(t, body.Images)
	require.NotNil(t, body.Debug)
	assert.Equal(t, 1, body.Debug.TotalFiles)
	assert.Equal(t, []string{"2025-01-02T00-00-00-000Z_preview.jpg"}, body.Debug.AllFiles)
}

func TestImagesStoreError(t *testing.T) {
	s := newTestServer(&fakeDispatcher{}, &fakeGallery{err: errors.New("bucket gone")})

	rec, _ := getImages(t, s)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to fetch files", body["error"])
	assert.Equal(t, "bucket gone", body["details"])
}

func TestImagesPreflight(t *testing.T) {
	g := &fakeGallery{}
	s := newTestServer(&fakeDispatcher{}, g)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/images", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, g.calls)
}

func TestImagesRateLimited(t *testing.T) {
	g := &fakeGallery{}
	s := newTestServer(&fakeDispatcher{}, g)
	s.limiter = newRateLimiter(2, time.Minute)

	for range 2 {
		rec, _ := getImages(t, s)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := getImages(t, s)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, g.calls)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeDispatcher{}, &fakeGallery{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeStatus(t, rec))
}

func TestFilesServedForLocalBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_original.png"), []byte("png"), 0o600))

	s := New(&Config{
		Dispatcher: &fakeDispatcher{},
		Gallery:    &fakeGallery{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		FilesDir:   dir,
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a_original.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		assert.True(t, rl.allow(ip))
	}
	assert.Len(t, rl.clients, 3)

	now = now.Add(30 * time.Second)
	assert.True(t, rl.allow("1.1.1.1"))
	assert.Len(t, rl.clients, 3, "entries inside the window are kept")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("4.4.4.4"))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "4.4.4.4")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{name: "forwarded", xff: "203.0.113.9, 10.0.0.1", remote: "10.0.0.2:1234", want: "203.0.113.9"},
		{name: "remote v4", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote v6", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
