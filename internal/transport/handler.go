package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/itsadi-24/smart-note/internal/analyzer"
	"github.com/itsadi-24/smart-note/internal/config"
	apperrors "github.com/itsadi-24/smart-note/internal/errors"
	"github.com/itsadi-24/smart-note/internal/logger"
	"github.com/itsadi-24/smart-note/internal/service"
	"github.com/itsadi-24/smart-note/pkg/models"
)

// NewHandler builds the HTTP surface: POST /analyze and GET /health behind
// request IDs, access logging, panic recovery, CORS and a body size limit.
func NewHandler(svc service.ImageAnalysisService, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		requestID(),
		requestLogger(),
		gin.CustomRecovery(recoverPanic),
		corsMiddleware(cfg.Variant.AllowedOrigins),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.POST("/analyze", analyzeImage(svc, cfg.RequestTimeout))
	r.GET("/health", healthCheck(svc))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewErrorResponse("Not Found"))
	})

	return r
}

func analyzeImage(svc service.ImageAnalysisService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), err)
				return
			}
			respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error(), err)
			return
		}

		out := svc.Analyze(ctx, c.GetString(requestIDKey), req.ImageData)

		switch out.Kind {
		case analyzer.OutcomeSuccess:
			c.JSON(http.StatusOK, models.NewSuccessResponse(out.Text))
		case analyzer.OutcomeSoftFailure:
			c.JSON(http.StatusOK, models.NewSoftFailureResponse(out.Message))
		default:
			c.JSON(apperrors.GetStatusCode(out.Err), models.NewErrorResponse(out.Message))
		}
	}
}

func healthCheck(svc service.ImageAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := svc.Health(c.Request.Context(), c.GetString(requestIDKey))

		if !report.Healthy {
			c.JSON(http.StatusInternalServerError, models.HealthResponse{
				Status:  models.HealthStatusUnhealthy,
				Variant: svc.Variant(),
				Model:   svc.Model(),
				Error:   report.Error,
			})
			return
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       models.HealthStatusHealthy,
			GeminiStatus: models.GeminiStatusConnected,
			Variant:      svc.Variant(),
			Model:        svc.Model(),
			Stats:        &report.Stats,
		})
	}
}

// Middleware and helper functions

// corsMiddleware admits only the listed origins. A request carrying any
// other Origin is aborted with 403 and an empty body.
func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"request_id": c.GetString(requestIDKey),
			"user_agent": c.Request.UserAgent(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

func recoverPanic(c *gin.Context, recovered any) {
	logger.WithFields(logrus.Fields{
		"panic":      recovered,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(requestIDKey),
	}).Error("Recovered from panic")

	c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewErrorResponse(http.StatusText(http.StatusInternalServerError)))
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
		"request_id":  c.GetString(requestIDKey),
	}).Warn("Request rejected")

	c.AbortWithStatusJSON(code, models.NewErrorResponse(message))
}
