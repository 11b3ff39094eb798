package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/japaniel/kanjireview/pkg/auth"
	"github.com/japaniel/kanjireview/pkg/controller"
	"github.com/japaniel/kanjireview/pkg/db"
)

type handlers struct {
	ctrl Controller
	auth Authenticator
	log  *zap.Logger
}

type answersRequest struct {
	Answers []controller.Answer `json:"answers"`
}

type kanjisRequest struct {
	Kanjis []db.Kanji `json:"kanjis"`
}

func (h *handlers) login(c *gin.Context) {
	var req auth.TelegramLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed login payload"})
		return
	}
	token, err := h.auth.Login(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLogin) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login rejected"})
			return
		}
		h.log.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *handlers) getReviews(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.GetReviews(c.Request.Context()))
}

func (h *handlers) setAnswers(c *gin.Context) {
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed answers payload"})
		return
	}
	n := h.ctrl.SetAnswers(c.Request.Context(), req.Answers)
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *handlers) learnMore(c *gin.Context) {
	n, ok := h.ctrl.LearnMoreKanjis(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": ok, "introduced": n})
}

func (h *handlers) listKanjis(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kanjis": h.ctrl.GetKanjis(c.Request.Context())})
}

func (h *handlers) addKanjis(c *gin.Context) {
	var req kanjisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed kanjis payload"})
		return
	}
	n := h.ctrl.BatchAddKanjis(c.Request.Context(), req.Kanjis)
	c.JSON(http.StatusOK, gin.H{"imported": n})
}
