package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourusername/lihee-search/pkg/aggregator"
	"github.com/yourusername/lihee-search/pkg/api/searchv1/searchv1connect"
)

// APIError is the JSON body of a failed REST call.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func abortWithError(c *gin.Context, logger *slog.Logger, code int, message string, err error) {
	body := APIError{Code: code, Message: message}
	if err != nil {
		body.Detail = err.Error()
	}
	logger.Warn("api error", "path", c.Request.URL.Path, "status", code, "message", message, "error", err)
	c.AbortWithStatusJSON(code, body)
}

type routerDeps struct {
	agg         *aggregator.Aggregator
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	serviceName string
}

func setupRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.serviceName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms",
			"Grpc-Timeout", "X-Grpc-Web", "X-User-Agent",
		},
		ExposeHeaders: []string{"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "time": time.Now(), "sources": d.agg.SourceIDs()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))

	path, handler := searchv1connect.NewSearchHandler(NewSearchServer(d.agg, d.logger))
	r.Any(path+"*any", gin.WrapH(handler))

	r.GET("/api/books", streamBooks(d))
	return r
}

// streamBooks writes one JSON Book per line, flushing after each so
// clients see records as the sources produce them.
func streamBooks(d routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyword := c.Query("keyword")
		if strings.TrimSpace(keyword) == "" {
			abortWithError(c, d.logger, http.StatusBadRequest, "invalid request", errEmptyKeyword)
			return
		}

		ctx := c.Request.Context()
		rx := d.agg.Start(ctx, keyword)
		defer rx.Detach()

		c.Header("Content-Type", "application/x-ndjson")
		c.Header("Cache-Control", "no-cache")
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
		c.Writer.Flush()

		enc := json.NewEncoder(c.Writer)
		for {
			// io.EOF ends a complete stream; a ctx error means the client left.
			b, err := rx.Recv(ctx)
			if err != nil {
				return
			}
			if err := enc.Encode(b); err != nil {
				d.logger.Warn("book stream write failed", "keyword", keyword, "error", err)
				return
			}
			c.Writer.Flush()
		}
	}
}
