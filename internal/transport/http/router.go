package http

import (
	"net/http"
	"net/url"
	"strings"

	"live-quiz-service/internal/app"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320 // mobile-friendly size

// RouterConfig configures the public HTTP surface.
type RouterConfig struct {
	// PublicURL is the base players open to join, e.g. https://quiz.example.com. When empty the
	// request's own scheme and host are used.
	PublicURL      string
	AllowedOrigins []string
}

// NewRouter mounts the health check, the WebSocket endpoint and room QR codes behind CORS.
func NewRouter(cfg RouterConfig, service *app.GameService, ws *WSHandler) http.Handler {
	router := httprouter.New()
	router.GET("/healthz", serveHealthCheck)
	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)
	router.GET("/rooms/:code/qr", serveRoomQR(cfg.PublicURL, service))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

func serveHealthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// serveRoomQR renders a PNG QR code pointing at the join page of an open room.
func serveRoomQR(publicURL string, service *app.GameService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if _, ok := service.Room(code); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(JoinURL(publicURL, r, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

// JoinURL is the link encoded in a room's QR code.
func JoinURL(publicURL string, r *http.Request, code string) string {
	base := strings.TrimSuffix(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(code)
}
