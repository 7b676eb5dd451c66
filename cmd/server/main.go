package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avolkhov/online_store/internal/binding"
	cartmgr "github.com/avolkhov/online_store/internal/cart"
	"github.com/avolkhov/online_store/internal/checkout"
	"github.com/avolkhov/online_store/internal/config"
	"github.com/avolkhov/online_store/internal/es"
	"github.com/avolkhov/online_store/internal/handlers"
	carthandlers "github.com/avolkhov/online_store/internal/handlers/cart"
	"github.com/avolkhov/online_store/internal/logging"
	"github.com/avolkhov/online_store/internal/mykafka"
	"github.com/avolkhov/online_store/internal/stock"
	"github.com/avolkhov/online_store/internal/store"
	httpserver "github.com/avolkhov/online_store/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Ошибка инициализации БД: %v", err)
	}

	prod := mykafka.NewProducer(configuration.KafkaBrokers())

	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
		searchHandler = handlers.NewSearchHandler(esClient, "product")
	}

	st := store.New(db)
	ledger := &stock.Ledger{Store: st}
	manager := &cartmgr.Manager{Store: st, Stock: ledger}
	bnd := &binding.Binding{Store: st}
	orchestrator := &checkout.Orchestrator{Store: st, Binding: bnd}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB:             db,
		UserHandler:    &handlers.UserHandler{Store: st, Binding: bnd, Carts: manager, Producer: prod},
		ProductHandler: &handlers.ProductHandler{Store: st, Producer: prod},
		CartHandler:    &carthandlers.CartHandler{Manager: manager, Checkout: orchestrator, Producer: prod},
		SearchHandler:  searchHandler,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDRESS,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
