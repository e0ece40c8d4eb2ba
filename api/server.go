package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"alquilercito/aggregator"
	"alquilercito/models"
	"alquilercito/query"
)

// Listings is the aggregator as seen by the API.
type Listings interface {
	Snapshot(ctx context.Context, force bool) *aggregator.Snapshot
	Last() *aggregator.Snapshot
}

// RunStore is the refresh journal. It may be nil when journaling is off.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error)
	Run(ctx context.Context, id string) (*models.RefreshRun, error)
	FeedStats(ctx context.Context) ([]models.FeedStats, error)
	Logs(ctx context.Context, runID string) ([]models.FeedLog, error)
}

type Options struct {
	AdminSecret string
	CORSOrigins []string
	// RefreshPerMinute caps POST /refresh; 0 disables the cap.
	RefreshPerMinute int
	Logger           *slog.Logger
}

type Server struct {
	Echo     *echo.Echo
	listings Listings
	runs     RunStore
	secret   string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewServer(listings Listings, runs RunStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:     e,
		listings: listings,
		runs:     runs,
		secret:   strings.TrimSpace(opts.AdminSecret),
		logger:   logger,
	}
	if opts.RefreshPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(opts.RefreshPerMinute)/60), opts.RefreshPerMinute)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/listings", s.handleListListings)
	api.GET("/listings/:id", s.handleGetListing)
	api.GET("/feeds", s.handleGetFeeds)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/logs", s.handleGetRunLogs)

	// Admin
	api.POST("/refresh", s.handleRefresh, s.adminMiddleware, s.throttle)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.secret == "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Admin access is not configured"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == s.secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == s.secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Refresh rate limit exceeded"})
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type listingsResponse struct {
	query.Page
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleListListings(c echo.Context) error {
	snap := s.listings.Snapshot(c.Request().Context(), false)
	page := query.Apply(snap.Listings, query.ParseOptions(c.QueryParams()))
	return c.JSON(http.StatusOK, listingsResponse{
		Page:      page,
		FetchedAt: snap.FetchedAt,
		ExpiresAt: snap.ExpiresAt,
	})
}

func (s *Server) handleGetListing(c echo.Context) error {
	snap := s.listings.Snapshot(c.Request().Context(), false)
	l := query.Find(snap.Listings, c.Param("id"))
	if l == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Listing not found"})
	}
	return c.JSON(http.StatusOK, l)
}

type feedsResponse struct {
	RunID     string              `json:"run_id,omitempty"`
	FetchedAt *time.Time          `json:"fetched_at,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Feeds     []models.FeedStatus `json:"feeds"`
	Stats     []models.FeedStats  `json:"stats,omitempty"`
}

func (s *Server) handleGetFeeds(c echo.Context) error {
	resp := feedsResponse{Feeds: []models.FeedStatus{}}
	if snap := s.listings.Last(); snap != nil {
		resp.RunID = snap.RunID
		resp.FetchedAt = &snap.FetchedAt
		resp.ExpiresAt = &snap.ExpiresAt
		resp.Feeds = snap.Feeds
	}
	if s.runs != nil {
		stats, err := s.runs.FeedStats(c.Request().Context())
		if err != nil {
			s.logger.Error("failed to load feed stats", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load feed stats"})
		}
		resp.Stats = stats
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.runs == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Refresh journal is disabled"})
	}
	limit := 20
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 && n <= 200 {
		limit = n
	}
	runs, err := s.runs.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list runs"})
	}
	if runs == nil {
		runs = []models.RefreshRun{}
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(c echo.Context) error {
	if s.runs == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Refresh journal is disabled"})
	}
	run, err := s.runs.Run(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("failed to load run", "run_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunLogs(c echo.Context) error {
	if s.runs == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Refresh journal is disabled"})
	}
	logs, err := s.runs.Logs(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("failed to load run logs", "run_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load run logs"})
	}
	if logs == nil {
		logs = []models.FeedLog{}
	}
	return c.JSON(http.StatusOK, map[string]any{"logs": logs})
}

type refreshResponse struct {
	RunID     string              `json:"run_id"`
	Listings  int                 `json:"listings"`
	Feeds     []models.FeedStatus `json:"feeds"`
	ExpiresAt time.Time           `json:"expires_at"`
}

func (s *Server) handleRefresh(c echo.Context) error {
	snap := s.listings.Snapshot(c.Request().Context(), true)
	s.logger.Info("forced refresh via api", "run_id", snap.RunID, "listings", len(snap.Listings))
	return c.JSON(http.StatusOK, refreshResponse{
		RunID:     snap.RunID,
		Listings:  len(snap.Listings),
		Feeds:     snap.Feeds,
		ExpiresAt: snap.ExpiresAt,
	})
}
