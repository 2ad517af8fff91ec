package tracking

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/pkg/httputil"
)

// 1x1 transparent GIF, 43 bytes.
var pixelGIF, _ = base64.StdEncoding.DecodeString(
	"R0lGODlhAQABAIAAAP///wAAACH5BAEAAAAALAAAAAABAAEAAAICRAEAOw==")

// Handler owns the client-visible contract of the tracking endpoints: the
// pixel is always served and the redirect always issued, regardless of
// parameter validity or anything that happens in the background.
type Handler struct {
	sink EventSink
}

// NewHandler creates the tracking HTTP handler on top of an event sink.
func NewHandler(sink EventSink) *Handler {
	return &Handler{sink: sink}
}

// Routes builds the tracking router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))
	r.Get("/track/open", h.HandleOpen)
	r.Get("/track/click", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen serves the open-tracking pixel. Malformed or missing parameters
// never fail the request; recording is simply skipped.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	campaignID, errC := uuid.Parse(q.Get("c"))
	contactID, errCt := uuid.Parse(q.Get("ct"))
	if errC == nil && errCt == nil {
		hit := &Hit{
			Kind:       EventOpened,
			CampaignID: campaignID,
			ContactID:  contactID,
			ReceivedAt: time.Now().UTC(),
			Signals:    ExtractSignals(r),
		}
		if ms, err := strconv.ParseInt(q.Get("t"), 10, 64); err == nil && ms > 0 {
			sentAt := time.UnixMilli(ms).UTC()
			hit.SentAt = &sentAt
		}
		h.sink.Enqueue(hit)
	}

	servePixel(w)
}

// HandleClick records a click and redirects to the destination. The redirect
// happens even when campaign/contact ids are missing or malformed; only a
// missing or undecodable url parameter is a client error.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dest := q.Get("url")
	if dest == "" {
		httputil.BadRequest(w, "missing or undecodable url parameter")
		return
	}

	campaignID, errC := uuid.Parse(q.Get("c"))
	contactID, errCt := uuid.Parse(q.Get("ct"))
	if errC == nil && errCt == nil {
		hit := &Hit{
			Kind:       EventClicked,
			CampaignID: campaignID,
			ContactID:  contactID,
			ReceivedAt: time.Now().UTC(),
			Signals:    ExtractSignals(r),
			LinkURL:    dest,
		}
		if pos, err := strconv.Atoi(q.Get("pos")); err == nil && pos >= 0 {
			hit.LinkPos = pos
		}
		h.sink.Enqueue(hit)
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

// HandleHealth is the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}
