// Package api exposes the controller over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/auth"
	"github.com/japaniel/kanjireview/pkg/controller"
	"github.com/japaniel/kanjireview/pkg/db"
)

// Controller is what the handlers call; *controller.Controller satisfies it.
type Controller interface {
	GetReviews(ctx context.Context) controller.Reviews
	SetAnswers(ctx context.Context, answers []controller.Answer) int
	LearnMoreKanjis(ctx context.Context) (int, bool)
	BatchAddKanjis(ctx context.Context, kanjis []db.Kanji) int
	GetKanjis(ctx context.Context) []db.KanjiRecord
}

// Authenticator turns a Telegram login into a token and validates tokens.
type Authenticator interface {
	TokenValidator
	Login(l auth.TelegramLogin) (string, error)
}

// RouterConfig holds the dependencies of the HTTP API.
type RouterConfig struct {
	Controller  Controller
	Auth        Authenticator
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with the public login route and the
// token-protected review and admin routes under /api.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	h := &handlers{ctrl: cfg.Controller, auth: cfg.Auth, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/login", h.login)

	protected := api.Group("/")
	protected.Use(RequireAuth(cfg.Auth, log))
	{
		protected.GET("/kanjis", h.getReviews)
		protected.POST("/answers", h.setAnswers)
		protected.POST("/learn-more", h.learnMore)
		protected.GET("/admin/kanjis", h.listKanjis)
		protected.POST("/admin/kanjis", h.addKanjis)
	}
	return r
}
