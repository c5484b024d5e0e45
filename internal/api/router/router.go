package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/vocal-vent/internal/admin"
	"github.com/wolfman30/vocal-vent/internal/chat"
	"github.com/wolfman30/vocal-vent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/internal/payments"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Site               *handlers.SiteHandler
	Chat               *chat.Handler
	Payments           *payments.Handler
	Admin              *admin.Handler
	AdminJWTSecret     string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Anonymous visitor cookie
	VisitorCookie string
	SecureCookies bool

	// Optional; nil disables rate limiting
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.Visitor(cfg.VisitorCookie, cfg.SecureCookies))
	if cfg.RateLimiter != nil {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Health and metrics
	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Visitor-facing pages, session and wizards
	if cfg.Site != nil {
		r.Group(func(site chi.Router) {
			site.Get("/pages/{page}", cfg.Site.Page)
			site.Post("/cta/{action}", cfg.Site.CTA)
			site.Post("/agreement", cfg.Site.Agree)
			site.Get("/session", cfg.Site.Session)
			site.Put("/session/dark-mode", cfg.Site.DarkMode)
			site.Get("/notifications", cfg.Site.Notifications)
			site.Post("/notifications/{index}/read", cfg.Site.MarkNotificationRead)

			site.Post("/booking/select", cfg.Site.SelectPackage)
			site.Post("/chat/select", cfg.Site.SelectPlatform)
			site.Post("/chat/duration", cfg.Site.SelectDuration)

			site.Route("/{flow}", func(flow chi.Router) {
				flow.Post("/next", cfg.Site.Next)
				flow.Post("/back", cfg.Site.Back)
				flow.Post("/goto/{step}", cfg.Site.GoTo)
				flow.Post("/submit", cfg.Site.Submit)
			})
		})
	}

	if cfg.Chat != nil {
		r.Route("/chats", func(rooms chi.Router) {
			rooms.Post("/", cfg.Chat.CreateRoom)
			rooms.Route("/{id}", func(room chi.Router) {
				room.Get("/messages", cfg.Chat.History)
				room.Post("/messages", cfg.Chat.Send)
				room.Get("/stream", cfg.Chat.Stream)
			})
		})
	}

	if cfg.Payments != nil {
		r.Route("/api/payments", func(p chi.Router) {
			p.Post("/initialize", cfg.Payments.Initialize)
			p.Get("/verify/{id}", cfg.Payments.Verify)
		})
	}

	// Admin routes; login is public, everything else needs the admin JWT
	if cfg.Admin != nil {
		r.Route("/admin", func(a chi.Router) {
			a.Post("/login", cfg.Admin.Login)
			a.Post("/logout", cfg.Admin.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
				protected.Get("/bookings", cfg.Admin.ListBookings)
				protected.Patch("/bookings/{id}", cfg.Admin.UpdateBooking)
				protected.Get("/chat-sessions", cfg.Admin.ListChatSessions)
				protected.Patch("/chat-sessions/{id}", cfg.Admin.UpdateChatSession)
				protected.Put("/settings/{group}", cfg.Admin.SaveSettings)
				protected.Get("/stats", cfg.Admin.Stats)
			})
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
