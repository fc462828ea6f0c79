package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/analysis"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/api"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/config"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/correlate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/fusion"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/store"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/timeutil"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/tracker"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "sigint_data.db", "Path to the sqlite database")
	tuningFile  = flag.String("config", "", "Path to a tuning config JSON file (optional)")
	semanticURL = flag.String("semantic-url", "", "URL of an external semantic scoring service (optional)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var tuning *config.TuningConfig
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("loaded tuning config from %s", *tuningFile)
	} else {
		tuning = &config.TuningConfig{}
	}

	db, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	tracks := tracker.NewStore(tracker.Config{
		MatchThreshold:          tuning.GetMatchThreshold(),
		MaxAssociationGap:       tuning.GetMaxAssociationGap(),
		PruneHorizon:            tuning.GetPruneHorizon(),
		PruneInterval:           tuning.GetPruneInterval(),
		VelocityRefreshInterval: tuning.GetVelocityRefreshInterval(),
	}, timeutil.RealClock{})
	tracks.Start()
	defer tracks.Close()

	analyzer := analysis.NewAnalyzer(tracks, db, nil)

	var provider correlate.SemanticProvider
	if *semanticURL != "" {
		provider = correlate.NewHTTPSemanticProvider(nil, *semanticURL)
		log.Printf("using semantic scoring service at %s", *semanticURL)
	}
	engine := correlate.NewEngine(correlate.Config{
		SemanticTimeout:   tuning.GetSemanticTimeout(),
		SemanticCacheSize: tuning.GetSemanticCacheSize(),
		SemanticCacheTTL:  tuning.GetSemanticCacheTTL(),
	}, provider)

	fuser := fusion.NewOrchestrator(fusion.Config{
		Threshold:         tuning.GetFusionThreshold(),
		EmitSampleOnEmpty: tuning.GetEmitSampleOnEmpty(),
		ExternalTimeout:   tuning.GetExternalTimeout(),
	}, engine)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(analyzer, tracks, fuser, db).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
