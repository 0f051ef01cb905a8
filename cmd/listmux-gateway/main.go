package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/edirooss/listmux/internal/client"
	"github.com/edirooss/listmux/internal/env"
	"github.com/edirooss/listmux/internal/http/handler"
	"github.com/edirooss/listmux/internal/http/middleware"
	"github.com/edirooss/listmux/internal/store"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is a Gin middleware that logs requests through Zap.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func main() {
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	cfg := env.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fabric := transport.NewZMQFabric(ctx)
	cli, err := client.New(log, fabric, cfg.ClientFrontendAddr)
	if err != nil {
		log.Fatal("client creation failed", zap.Error(err))
	}
	defer cli.Close()

	// Warm the offline cache from the last snapshot.
	if cfg.SnapshotPath != "" {
		if err := store.LoadSnapshot(cfg.SnapshotPath, cli.Manager()); err != nil {
			log.Warn("snapshot load failed", zap.Error(err))
		}
	}

	lists := handler.NewListsHandler(log, cli, cfg.SnapshotPath)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())
	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.CapConcurrentRequests(cfg.GatewayMaxInflight))
	r.Use(ZapLogger(log))

	r.GET("/api/ping", func(c *gin.Context) {
		if !cli.CheckAvailability() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "server unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/api/lists", lists.CreateList)
	r.GET("/api/lists/:id", lists.GetList)
	r.DELETE("/api/lists/:id", lists.DeleteList)
	r.POST("/api/lists/:id/items", lists.AddItem)
	r.DELETE("/api/lists/:id/items/:itemID", lists.RemoveItem)
	r.POST("/api/lists/:id/items/:itemID/acquire", lists.AcquireItem)
	r.POST("/api/lists/:id/items/:itemID/increment", lists.IncrementItem)
	r.POST("/api/lists/:id/items/:itemID/decrement", lists.DecrementItem)

	httpserver := &http.Server{
		Addr:    cfg.GatewayAddr,
		Handler: r,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,

		MaxHeaderBytes: 1 << 15, // 32 KB

		ErrorLog: zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	log.Info("running HTTP gateway", zap.String("addr", cfg.GatewayAddr))
	if err := httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
