/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-htsget/htsgetd/internal/config"
	"github.com/go-htsget/htsgetd/internal/healthserver"
	"github.com/go-htsget/htsgetd/internal/httpapi"
	"github.com/go-htsget/htsgetd/internal/logging"
	"github.com/go-htsget/htsgetd/internal/storage"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the htsget HTTP server",
	Long: `Start the htsget HTTP server using a TOML configuration file.

Examples:
  # Run with the default config path
  htsgetd serve

  # Run with a specific config file
  htsgetd serve --config htsgetd.toml
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "htsgetd.toml", "Path to configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Style: logging.Style(cfg.Logging.Style),
		Level: cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	storage.ConfigureRetries(cfg.Server.RetryAttempts)

	chain, localMounts, err := config.BuildResolverChain(cfg)
	if err != nil {
		return fmt.Errorf("building resolver chain: %w", err)
	}

	handler := &httpapi.Handler{
		Resolver: chain,
		Logger:   logger,
		ServiceInfo: httpapi.ServiceInfoConfig{
			ID:               cfg.ServiceInfo.ID,
			Name:             cfg.ServiceInfo.Name,
			Version:          cfg.ServiceInfo.Version,
			OrganizationName: cfg.ServiceInfo.OrganizationName,
			OrganizationURL:  cfg.ServiceInfo.OrganizationURL,
			ContactURL:       cfg.ServiceInfo.ContactURL,
			DocumentationURL: cfg.ServiceInfo.DocumentationURL,
			CreatedAt:        cfg.ServiceInfo.CreatedAt,
			UpdatedAt:        cfg.ServiceInfo.UpdatedAt,
			Environment:      cfg.ServiceInfo.Environment,
		},
	}

	readTimeout, err := cfg.Server.ReadTimeoutDuration()
	if err != nil {
		return fmt.Errorf("server.read_timeout: %w", err)
	}

	router := handler.NewRouter()
	for _, mount := range localMounts {
		prefix := "/" + strings.Trim(mount.PathPrefix, "/") + "/"
		router.PathPrefix(prefix).Handler(mount.Backend.DataHandler(mount.PathPrefix))
		logger.Info("mounted local data handler", zap.String("prefix", prefix))
	}

	server := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: readTimeout,
	}

	healthPort, err := addrPort(cfg.Server.HealthAddress)
	if err != nil {
		return fmt.Errorf("server.health_address: %w", err)
	}
	health := healthserver.Start(logger, healthPort, func() bool { return true })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting htsget server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("htsget server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("htsget server shutdown error", zap.Error(err))
	}
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", zap.Error(err))
	}
	return nil
}

// addrPort extracts the numeric port from a "host:port" listen
// address, since healthserver.Start takes a bare port.
func addrPort(addr string) (int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0, fmt.Errorf("address %q has no port", addr)
	}
	return strconv.Atoi(addr[idx+1:])
}
