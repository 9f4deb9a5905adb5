package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"hiddo/internal/auth"
	"hiddo/internal/config"
	"hiddo/internal/db"
	"hiddo/internal/email"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(cfg *config.Config, database *db.DB, sender email.Sender) *Server {
	userRepo := db.NewUserRepository(database)
	pendingRepo := db.NewPendingUserRepository(database)
	tokenRepo := db.NewVerificationTokenRepository(database)
	sessionRepo := db.NewVerificationSessionRepository(database)
	refreshRepo := db.NewRefreshTokenRepository(database)
	postRepo := db.NewPostRepository(database)
	commentRepo := db.NewCommentRepository(database)
	storyRepo := db.NewStoryRepository(database)
	followRepo := db.NewFollowRepository(database)

	jwtService := auth.NewJWTService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	authHandler := NewAuthHandler(
		userRepo,
		pendingRepo,
		tokenRepo,
		sessionRepo,
		refreshRepo,
		jwtService,
		sender,
		cfg.Auth.SignupCodeTTL,
		cfg.Auth.LoginCodeTTL,
		cfg.Auth.SignupSessionTTL,
	)
	userHandler := NewUserHandler(userRepo, followRepo, postRepo)
	postHandler := NewPostHandler(postRepo, commentRepo)
	storyHandler := NewStoryHandler(storyRepo)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(jwtService)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

		r.Route("/auth", func(r chi.Router) {
			// Per-IP limits on top of the per-email policies inside the flow.
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(20, time.Minute))
				r.Post("/signup-email", authHandler.SignupEmail)
				r.Post("/verify-email", authHandler.VerifyEmail)
				r.Post("/complete-profile", authHandler.CompleteProfile)
				r.Post("/complete-account", authHandler.CompleteAccount)
				r.Post("/login-email", authHandler.LoginEmail)
				r.Post("/verify-login", authHandler.VerifyLogin)
			})

			r.With(httprate.LimitByIP(30, time.Minute)).Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(authMiddleware.OptionalAuth).Get("/nearby", postHandler.Nearby)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/", postHandler.Create)
				r.Get("/feed", postHandler.Feed)
				r.Get("/saved", postHandler.Saved)
				r.Delete("/{postID}", postHandler.Delete)
				r.Post("/{postID}/like", postHandler.Like)
				r.Delete("/{postID}/like", postHandler.Unlike)
				r.Post("/{postID}/save", postHandler.Save)
				r.Delete("/{postID}/save", postHandler.Unsave)
				r.Post("/{postID}/comments", postHandler.CreateComment)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.OptionalAuth)
				r.Get("/{postID}", postHandler.Get)
				r.Get("/{postID}/comments", postHandler.ListComments)
			})
		})

		r.With(authMiddleware.RequireAuth).Delete("/comments/{commentID}", postHandler.DeleteComment)

		r.Route("/stories", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/", storyHandler.Create)
			r.Get("/feed", storyHandler.Feed)
		})

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Get("/me", userHandler.GetMe)
				r.Patch("/me", userHandler.UpdateMe)
				r.Post("/{username}/follow", userHandler.Follow)
				r.Delete("/{username}/follow", userHandler.Unfollow)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.OptionalAuth)
				r.Get("/{username}", userHandler.GetProfile)
				r.Get("/{username}/followers", userHandler.Followers)
				r.Get("/{username}/following", userHandler.Following)
			})
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
