package api

import (
	"context"
	"log/slog"
	"net/http"
	"nexus-mail/assistant"
	"nexus-mail/contract"
	"nexus-mail/directory"
	"nexus-mail/domain"
	"nexus-mail/observability"
	"nexus-mail/services"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const ActorHeader = "X-Actor-ID"

type Server struct {
	log                  *slog.Logger
	directory            directory.IDirectory
	mailbox              services.IMailboxService
	templates            services.ITemplateService
	chat                 services.IChatService
	gateway              assistant.IGateway
	registry             contract.IRegistry
	monitor              *observability.MonitoringManager
	connectionBufferSize int
	maxAttachmentBytes   int64
}

func NewServer(log *slog.Logger, dir directory.IDirectory,
	mailbox services.IMailboxService, templates services.ITemplateService, chat services.IChatService,
	gateway assistant.IGateway, registry contract.IRegistry,
	connectionBufferSize int, maxAttachmentBytes int64) *Server {
	return &Server{
		log:                  log,
		directory:            dir,
		mailbox:              mailbox,
		templates:            templates,
		chat:                 chat,
		gateway:              gateway,
		registry:             registry,
		connectionBufferSize: connectionBufferSize,
		maxAttachmentBytes:   maxAttachmentBytes,
	}
}

// WithMonitor exposes the runtime monitoring snapshot to admins.
func (s *Server) WithMonitor(monitor *observability.MonitoringManager) *Server {
	s.monitor = monitor
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", ActorHeader},
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/users", s.listUsers)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.listMessages)
			r.Post("/", s.sendMessage)
			r.Get("/unread-count", s.unreadCount)
			r.Post("/read-all", s.markAllRead)
			r.Get("/events", s.mailboxEvents)
			r.With(s.adminOnly).Get("/stats", s.stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getMessage)
				r.Post("/read", s.markRead)
				r.Post("/unread", s.markUnread)
				r.Post("/star", s.toggleStar)
				r.Delete("/", s.recall)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/", s.listTemplates)
			r.Post("/", s.saveTemplate)
			r.Delete("/{id}", s.deleteTemplate)
			r.Post("/{id}/send", s.sendTemplate)
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/summarize", s.summarize)
			r.Post("/draft", s.draft)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/session", s.currentSession)
			r.Post("/session/new", s.newSession)
			r.Get("/sessions", s.listSessions)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/messages", s.chatMessages)
				r.Post("/messages", s.appendChat)
				r.Post("/images", s.appendImage)
				r.Post("/read", s.markChatRead)
				r.With(s.adminOnly).Post("/close", s.closeSession)
				r.Get("/events", s.sessionEvents)
			})
		})

		r.Get("/attachments/{ref}", s.attachment)
		r.With(s.adminOnly).Get("/monitoring", s.monitoring)
	})
	return r
}

type actorKey struct{}

// authenticate resolves the X-Actor-ID header against the directory.
// Identity is asserted by the caller; there is no credential check.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ActorHeader)
		if id == "" {
			id = r.URL.Query().Get("actor")
		}
		user, ok := s.directory.Resolve(id)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "unknown or missing actor")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, user)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actor(r).IsAdmin() {
			writeMessage(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actor(r *http.Request) domain.User {
	user, _ := r.Context().Value(actorKey{}).(domain.User)
	return user
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *Server) monitoring(w http.ResponseWriter, _ *http.Request) {
	if s.monitor == nil {
		writeMessage(w, http.StatusNotFound, "monitoring disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.GetLatest())
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.directory.List())
}
