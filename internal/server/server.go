package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"illustro/config"
	"illustro/internal/httpx"
	"illustro/internal/illustrate"
	"illustro/internal/llm"
	"illustro/internal/store"
	"illustro/tools/image_search/serper"
	"illustro/tools/image_search/wikipedia"
)

func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if cfg.Storage.Backend == "postgres" {
		if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	st, err := store.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	provider := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	searchHTTP := httpx.New(cfg.Search.Timeout, cfg.Search.Retries, 0)

	wiki := &wikipedia.Search{
		Lang:              cfg.Search.Wikipedia.Language,
		FallbackLang:      cfg.Search.Wikipedia.FallbackLanguage,
		MinArticleResults: cfg.Search.Wikipedia.MinArticleResults,
		MinImageWidth:     cfg.Search.Wikipedia.MinImageWidth,
		HTTP:              searchHTTP,
	}
	web := &serper.Search{APIKey: cfg.Search.Serper.APIKey, HTTP: searchHTTP}
	webEnabled := cfg.Search.Serper.APIKey != ""

	extractor := illustrate.NewExtractor(provider, cfg.LLM.CompletionModel, cfg.Illustration.MaxQueries)
	aggregator := illustrate.NewAggregator(wiki, web, webEnabled, cfg.Illustration.CandidatesPerSource, cfg.Illustration.SearchPreference)
	selector := illustrate.NewSelector(provider, cfg.LLM.VisionModel, searchHTTP)

	renderer := NewRenderState()
	pipeline := illustrate.NewPipeline(cfg.Illustration, extractor, aggregator, selector, st, renderer, nil)
	dispatcher := illustrate.NewDispatcher(pipeline, 0)
	dispatcher.Start(ctx)

	restorer := illustrate.NewRestorer(st, renderer, cfg.Illustration.RestoreSettleDelay)
	go func() {
		if _, err := restorer.Restore(ctx); err != nil {
			baseLogger.Printf("restore: %v", err)
		}
	}()

	mh := &MessagesHandler{Store: st, Dispatcher: dispatcher, Renderer: renderer}
	mh.Register(e.Group("/api/messages"))

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
