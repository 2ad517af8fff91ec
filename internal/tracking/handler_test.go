package tracking

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	hits []*Hit
	full bool
}

func (s *captureSink) Enqueue(hit *Hit) bool {
	if s.full {
		return false
	}
	s.hits = append(s.hits, hit)
	return true
}

func TestHandleOpenAlwaysServesPixel(t *testing.T) {
	campaign := uuid.New()
	contact := uuid.New()

	tests := []struct {
		name       string
		target     string
		wantRecord bool
	}{
		{"valid params", "/track/open?c=" + campaign.String() + "&ct=" + contact.String() + "&t=1700000000000", true},
		{"valid params without t", "/track/open?c=" + campaign.String() + "&ct=" + contact.String(), true},
		{"missing contact", "/track/open?c=" + campaign.String(), false},
		{"missing everything", "/track/open", false},
		{"malformed campaign id", "/track/open?c=not-a-uuid&ct=" + contact.String(), false},
		{"garbage t is tolerated", "/track/open?c=" + campaign.String() + "&ct=" + contact.String() + "&t=banana", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			h := NewHandler(sink)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Header.Set("User-Agent", uaWindowsChrome)
			rec := httptest.NewRecorder()
			h.HandleOpen(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-store, no-cache, must-revalidate", rec.Header().Get("Cache-Control"))
			assert.True(t, bytes.Equal(pixelGIF, rec.Body.Bytes()), "body must be the exact pixel bytes")

			if tt.wantRecord {
				require.Len(t, sink.hits, 1)
				assert.Equal(t, EventOpened, sink.hits[0].Kind)
				assert.Equal(t, campaign, sink.hits[0].CampaignID)
			} else {
				assert.Empty(t, sink.hits)
			}
		})
	}
}

func TestHandleOpenPixelIs43Bytes(t *testing.T) {
	require.Len(t, pixelGIF, 43)
	assert.Equal(t, []byte("GIF89a"), pixelGIF[:6])
}

func TestHandleOpenParsesSentTimestamp(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(sink)

	campaign := uuid.New()
	contact := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/track/open?c="+campaign.String()+"&ct="+contact.String()+"&t=1700000000000", nil)
	rec := httptest.NewRecorder()
	h.HandleOpen(rec, req)

	require.Len(t, sink.hits, 1)
	require.NotNil(t, sink.hits[0].SentAt)
	assert.Equal(t, int64(1700000000000), sink.hits[0].SentAt.UnixMilli())
}

func TestHandleClickRedirects(t *testing.T) {
	dest := "https://example.com/offers?id=42"
	campaign := uuid.New()
	contact := uuid.New()

	tests := []struct {
		name       string
		target     string
		wantRecord bool
	}{
		{
			"valid ids",
			"/track/click?c=" + campaign.String() + "&ct=" + contact.String() + "&url=" + url.QueryEscape(dest) + "&pos=2",
			true,
		},
		{
			"malformed ids still redirect",
			"/track/click?c=nope&ct=nope&url=" + url.QueryEscape(dest),
			false,
		},
		{
			"missing ids still redirect",
			"/track/click?url=" + url.QueryEscape(dest),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			h := NewHandler(sink)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			h.HandleClick(rec, req)

			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, dest, rec.Header().Get("Location"))

			if tt.wantRecord {
				require.Len(t, sink.hits, 1)
				assert.Equal(t, EventClicked, sink.hits[0].Kind)
				assert.Equal(t, dest, sink.hits[0].LinkURL)
				assert.Equal(t, 2, sink.hits[0].LinkPos)
			} else {
				assert.Empty(t, sink.hits)
			}
		})
	}
}

func TestHandleClickMissingURLIs400(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(sink)

	req := httptest.NewRequest(http.MethodGet, "/track/click?c="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.HandleClick(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, sink.hits)
}

func TestHandlersSucceedWhenSinkShedding(t *testing.T) {
	sink := &captureSink{full: true}
	h := NewHandler(sink)

	req := httptest.NewRequest(http.MethodGet,
		"/track/open?c="+uuid.NewString()+"&ct="+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.HandleOpen(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/track/click?url=https%3A%2F%2Fexample.com", nil)
	rec = httptest.NewRecorder()
	h.HandleClick(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRoutes(t *testing.T) {
	h := NewHandler(&captureSink{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
