package tracking

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/phishguard/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// reportLandingHTML is shown after a recipient reports a simulation.
const reportLandingHTML = `<!doctype html><html><body>
<h1>Thank you for reporting this message.</h1>
<p>This was a simulated phishing exercise. Reporting it was the right call.</p>
</body></html>`

// EventPublisher delivers capture events to the processing pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

// Handler exposes the tracking capture endpoints: the open pixel, click
// redirects and the report-phishing link. Capture always responds
// success-shaped to the recipient; event delivery happens out of band.
type Handler struct {
	signer *Signer
	pub    EventPublisher
	log    *logger.Logger
}

// NewHandler creates a capture handler.
func NewHandler(signer *Signer, pub EventPublisher) *Handler {
	return &Handler{signer: signer, pub: pub, log: logger.Component("tracking")}
}

// Routes returns the capture router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{data}/{sig}", h.HandleOpen)
	r.Get("/track/click/{data}/{sig}", h.HandleClick)
	r.Get("/track/report/{data}/{sig}", h.HandleReport)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen records an opened event and serves the pixel. Invalid
// payloads still get the pixel; a broken image in a mail client tells an
// attacker more than it tells us.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	parts, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 2)
	if err != nil {
		h.servePixel(w)
		return
	}

	h.pub.Publish(r.Context(), Event{
		EventType:  EventOpened,
		CampaignID: parts[0],
		UserID:     parts[1],
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	})

	h.log.Debug("open captured", "campaign_id", parts[0], "user_id", parts[1])
	h.servePixel(w)
}

// HandleClick records a clicked event and redirects to the landing URL.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	parts, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 3)
	if err != nil {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}
	targetURL := parts[2]

	h.pub.Publish(r.Context(), Event{
		EventType:  EventClicked,
		CampaignID: parts[0],
		UserID:     parts[1],
		ClickedURL: targetURL,
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	})

	h.log.Debug("click captured", "campaign_id", parts[0], "user_id", parts[1])
	http.Redirect(w, r, targetURL, http.StatusFound)
}

// HandleReport records a reported event and shows the debrief page.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	parts, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 2)
	if err != nil {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	h.pub.Publish(r.Context(), Event{
		EventType:  EventReported,
		CampaignID: parts[0],
		UserID:     parts[1],
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	})

	h.log.Info("report captured", "campaign_id", parts[0], "user_id", parts[1])
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(reportLandingHTML))
}

// HandleHealth is a liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
