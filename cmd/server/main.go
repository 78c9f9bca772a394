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

	"github.com/Brownie44l1/vision-pipeline/internal/handlers"
	"github.com/Brownie44l1/vision-pipeline/internal/model"
	"github.com/Brownie44l1/vision-pipeline/internal/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	defaults := pipeline.DefaultConfig()

	detectorModel := pflag.String("detector-model", "models/detector.onnx", "path to the object detection model")
	detectorLabels := pflag.String("detector-labels", "models/detector_labels.txt", "path to the detection labels, one per line")
	classifierModel := pflag.String("classifier-model", "models/classifier.onnx", "path to the classification model")
	classifierLabels := pflag.String("classifier-labels", "models/classifier_labels.txt", "path to the classification labels, one per line")
	ortLibrary := pflag.String("onnxruntime-lib", os.Getenv("ONNXRUNTIME_LIB"), "path to the onnxruntime shared library")
	mode := pflag.String("mode", model.KindClassification.String(), "initial model: detect or classify")
	threshold := pflag.Float32("threshold", defaults.Threshold, "detection confidence threshold")
	iouThreshold := pflag.Float32("iou-threshold", defaults.IoUThreshold, "non-max suppression IoU threshold")
	numThreads := pflag.Int("threads", defaults.NumThreads, "CPU worker threads when no accelerator is available")
	maxResults := pflag.Int("max-results", defaults.MaxResults, "maximum detections reported per frame")
	cpuOnly := pflag.Bool("cpu-only", false, "skip the accelerated execution provider")
	logLevel := pflag.String("log-level", "info", "log level: debug, info, warn, error")
	addr := pflag.String("addr", "", "listen address (defaults to :$PORT or :8080)")
	pflag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", *logLevel, err)
	}
	log.SetLevel(level)

	cfg := pipeline.Config{
		Threshold:    *threshold,
		NumThreads:   *numThreads,
		MaxResults:   *maxResults,
		IoUThreshold: *iouThreshold,
		CPUOnly:      *cpuOnly,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	initial, err := model.ParseKind(*mode)
	if err != nil {
		log.Fatalf("Invalid mode: %v", err)
	}

	assets, err := loadAssets(log, map[model.Kind][2]string{
		model.KindDetection:      {*detectorModel, *detectorLabels},
		model.KindClassification: {*classifierModel, *classifierLabels},
	})
	if err != nil {
		log.Fatalf("Failed to load assets: %v", err)
	}

	if err := model.InitRuntime(*ortLibrary); err != nil {
		log.Fatalf("Failed to initialize inference runtime: %v", err)
	}
	defer model.ShutdownRuntime()

	results := handlers.NewResultStore()
	coordinator := pipeline.NewCoordinator(pipeline.NewOpenFunc(assets, results, cfg, log), log)
	if err := coordinator.Switch(initial); err != nil {
		log.Fatalf("Failed to initialize model: %v", err)
	}
	defer coordinator.Close()

	worker := pipeline.NewWorker()
	handler := handlers.NewHandler(coordinator, worker, results, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx, handler.ProcessFrame)
	}()

	mux := http.NewServeMux()
	handler.Register(mux, enableCORS)

	listenAddr := *addr
	if listenAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		listenAddr = ":" + port
	}
	srv := &http.Server{Addr: listenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"addr":      listenAddr,
		"mode":      initial.String(),
		"threshold": cfg.Threshold,
		"threads":   cfg.NumThreads,
	}).Info("Server starting")
	log.Info("Endpoints:")
	log.Info("  GET  /health - Health check")
	log.Info("  POST /frame  - Publish a frame (multipart field 'image')")
	log.Info("  GET  /result - Latest result")
	log.Info("  GET  /mode   - Active model")
	log.Info("  POST /mode   - Switch model {\"mode\":\"detect\"|\"classify\"}")
	log.Info("  GET  /stats  - Frame counters")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server failed: %v", err)
	}

	stop()
	<-workerDone
	log.WithField("stats", worker.Stats()).Info("Server stopped")
}

// loadAssets reads the model blobs and label files. A missing model is fatal;
// a missing label file only leaves results unlabeled.
func loadAssets(log logrus.FieldLogger, paths map[model.Kind][2]string) (map[model.Kind]pipeline.Assets, error) {
	assets := make(map[model.Kind]pipeline.Assets, len(paths))
	for kind, p := range paths {
		blob, err := os.ReadFile(p[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s model: %w", kind, err)
		}
		labels := model.LoadLabels(p[1], log)
		log.WithFields(logrus.Fields{
			"model":  kind.String(),
			"path":   p[0],
			"labels": len(labels),
		}).Info("Loaded model assets")
		assets[kind] = pipeline.Assets{Model: blob, Labels: labels}
	}
	return assets, nil
}
