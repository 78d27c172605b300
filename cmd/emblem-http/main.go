// Command emblem-http serves the emblem scorer over HTTP.
//
//	GET  /healthz
//	POST /v1/emblem/score   multipart field "image"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/emblem-match/internal/config"
	"github.com/ironsheep/emblem-match/internal/httpapi"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/scorer"
	"github.com/ironsheep/emblem-match/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "JSON configuration file")
	addr := flag.String("addr", "", "listen address (default :8080)")
	templatePath := flag.String("template", "", "template image (default logo50.png)")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Resolve(*configPath, func(c *config.Config) {
		if set["addr"] {
			c.HTTPAddr = *addr
		}
		if set["template"] {
			c.TemplatePath = *templatePath
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "emblem-http: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emblem-http: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewConsoleLogger(os.Stderr, level)

	if err := serve(cfg, log); err != nil {
		log.Error("main", err, nil)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, log logger.Logger) error {
	bound, err := scorer.Open(cfg.Scorer, cfg.TemplatePath, scorer.WithLogger(log))
	if err != nil {
		return err
	}

	var sc httpapi.Scorer = bound
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		sc = store.NewCachedScorer(rdb, cfg.RedisTTL.Duration, bound, "emblem")
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewScoreHandler(sc, cfg.Threshold, log), log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("main", "listening", map[string]interface{}{
			"addr":     cfg.HTTPAddr,
			"template": cfg.TemplatePath,
			"cache":    cfg.RedisAddr != "",
		})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
