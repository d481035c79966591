package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/firestore"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/loanlens/loanlens/internal/auth"
	"github.com/loanlens/loanlens/internal/blob"
	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/extraction"
	"github.com/loanlens/loanlens/internal/ocr"
	"github.com/loanlens/loanlens/internal/queue"
	"github.com/loanlens/loanlens/internal/search"
	"github.com/loanlens/loanlens/internal/service"
	"github.com/loanlens/loanlens/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.Environment != "local" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Store
	var storeImpl store.Store
	if cfg.UseMemoryStore {
		log.Info("using in-memory store for local development")
		storeImpl = store.NewMemoryStore()
	} else {
		firestoreClient, err := firestore.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			log.Fatalf("failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()
		storeImpl = store.NewFirestoreStore(firestoreClient)
	}

	// Blob store
	var blobs blob.Store
	if cfg.StorageBucket == "" {
		log.Info("no STORAGE_BUCKET configured, using in-memory blob store")
		blobs = blob.NewMemoryStore()
	} else {
		gcsClient, err := gcsstorage.NewClient(ctx)
		if err != nil {
			log.Fatalf("failed to create storage client: %v", err)
		}
		defer gcsClient.Close()
		blobs = blob.NewGCSStore(gcsClient, cfg.StorageBucket)
	}

	// OCR
	var ocrClient *ocr.Client
	if cfg.OCRServiceURL != "" {
		ocrClient = ocr.NewClient(ctx, cfg.OCRServiceURL, time.Duration(cfg.OCRTimeoutSeconds)*time.Second)
	} else {
		log.Info("no OCR_SERVICE_URL configured, scanned documents fall back to the parser")
	}
	ocrRouter := ocr.NewRouter(ocrClient, 30*time.Second, nil)

	// Extraction
	gemini := extraction.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	extractor := extraction.NewRouter(
		extraction.NewDoclingStrategy(gemini),
		extraction.NewLangExtractStrategy(gemini),
	)
	extractCfg := extraction.Config{
		FlashModel:       cfg.GeminiFlashModel,
		ProModel:         cfg.GeminiProModel,
		ChunkConcurrency: cfg.ChunkConcurrency,
	}

	// Search index (optional)
	var index search.BorrowerIndex
	if cfg.AlgoliaAppID != "" && cfg.AlgoliaAPIKey != "" {
		client, err := search.NewAlgoliaClient(search.Config{
			AppID:     cfg.AlgoliaAppID,
			APIKey:    cfg.AlgoliaAPIKey,
			IndexName: cfg.AlgoliaIndexName,
		})
		if err != nil {
			log.Fatalf("failed to create Algolia client: %v", err)
		}
		index = client
	}

	// Task queue (optional; absent means synchronous inline processing)
	var tasks queue.TaskQueue
	if cfg.TasksQueuePath != "" {
		tasksClient, err := cloudtasks.NewClient(ctx)
		if err != nil {
			log.Fatalf("failed to create Cloud Tasks client: %v", err)
		}
		defer tasksClient.Close()
		tasks = queue.NewCloudTasksQueue(tasksClient, cfg.TasksQueuePath, cfg.TasksHandlerURL, cfg.TasksInvokerSA)
	} else {
		log.Info("no TASKS_QUEUE_PATH configured, processing documents inline")
	}

	svc := service.NewDocumentService(storeImpl, blobs, tasks, ocrRouter, extractor, index, extractCfg)

	var taskAuth *auth.TaskAuth
	if cfg.TasksVerifyAuth {
		taskAuth = auth.NewTaskAuth(cfg.TasksHandlerURL, cfg.TasksInvokerSA, false)
	}

	mux := http.NewServeMux()
	service.NewHandler(svc, storeImpl, index, taskAuth, cfg.MaxUploadBytes).Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
			"https://loanlens.dev",
			"https://www.loanlens.dev",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
		},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}
