// Copyright 2025 The mosaic Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/mosaic-io/mosaic/mediaservice/admission"
	"github.com/mosaic-io/mosaic/mediaservice/config"
	"github.com/mosaic-io/mosaic/mediaservice/dedup"
	"github.com/mosaic-io/mosaic/mediaservice/handler"
	"github.com/mosaic-io/mosaic/mediaservice/integrity"
	"github.com/mosaic-io/mosaic/mediaservice/media"
	"github.com/mosaic-io/mosaic/mediaservice/pipeline"
	"github.com/mosaic-io/mosaic/mediaservice/storage"
	"github.com/mosaic-io/mosaic/pkg/mlog"
	"github.com/mosaic-io/mosaic/pkg/util"
)

func main() {
	if err := config.InitConfig(); err != nil {
		mlog.Fatalf("Failed to initialize configuration: %v", err)
	}

	cfg := config.Get()

	logLevel, err := mlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		mlog.Warnf("Invalid initial log level '%s': %v. Using default.", cfg.LogLevel, err)
	}
	mlog.SetLevel(logLevel)
	mlog.Infof("Logger initialized with level: %s", cfg.LogLevel)

	if err := util.EnsureDir(cfg.TempDir); err != nil {
		mlog.Fatalf("Failed to create temp dir %s: %v", cfg.TempDir, err)
	}

	stop := make(chan struct{})

	gate := admission.NewGate(cfg.MaxConcurrent, cfg.StaleSlotAge, nil)
	go gate.Run(cfg.SweepInterval, stop)

	var index dedup.Index
	switch cfg.DedupBackend {
	case "redis":
		redisIdx, err := dedup.NewRedisIndex(cfg.RedisAddr, cfg.DedupTTL)
		if err != nil {
			mlog.Fatalf("Failed to connect dedup index to redis at %s: %v", cfg.RedisAddr, err)
		}
		index = redisIdx
	default:
		memIdx := dedup.NewMemoryIndex(cfg.DedupTTL, nil)
		go memIdx.Run(cfg.SweepInterval, stop)
		index = memIdx
	}
	mlog.Infof("Dedup index backend: %s", cfg.DedupBackend)

	primary, err := storage.NewMinioStore(cfg.Minio)
	if err != nil {
		mlog.Fatalf("Failed to connect to primary blob store: %v", err)
	}

	stores := map[string]storage.Store{
		storage.BackendPrimary: primary,
	}

	var presigner handler.Presigner
	if cfg.S3.Bucket != "" {
		large, err := storage.NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			mlog.Fatalf("Failed to connect to large-object store: %v", err)
		}
		stores[storage.BackendLarge] = large
		presigner = large
		mlog.Infof("Large-object backend enabled on bucket %s", cfg.S3.Bucket)
	} else {
		mlog.Infof("Large-object backend not configured, primary store takes all payloads")
	}

	pipe := pipeline.New(
		gate,
		integrity.NewVerifier(cfg.VerifyAttempts, cfg.VerifyBaseDelay),
		index,
		media.NewClassifier(media.Policy{
			MaxImageDim:   cfg.MaxImageDim,
			ThumbSize:     cfg.ThumbSize,
			MaxVideoBytes: cfg.MaxVideoBytes,
		}),
		storage.NewRouter(nil, nil),
		pipeline.NewExecutor(stores, cfg.VerifyAttempts, cfg.VerifyBaseDelay),
		cfg.TempDir,
	)

	mediaHdr := handler.NewMediaHandler(pipe, gate, presigner, cfg.MaxUploadBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/media/upload", mediaHdr.Upload)
	mux.HandleFunc("/v1/media/direct-upload", mediaHdr.DirectUpload)
	mux.HandleFunc("/healthz", mediaHdr.Health)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Auth-User", "X-Auth-Role"},
	})

	mediaSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: corsHandler.Handler(mux),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		mlog.Info("Shutting down server...")

		close(stop)

		// Set timeout for HTTP server shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := mediaSrv.Shutdown(ctx); err != nil {
			mlog.Errorf("Server shutdown error: %v", err)
		}

		mlog.Info("Server shutdown complete")
		os.Exit(0)
	}()

	mlog.Infof("Server starting on %v", cfg.Addr)

	if err := mediaSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mlog.Fatalf("Failed to start HTTP server: %v", err)
	}
}
