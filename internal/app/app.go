// Package app wires configuration into the concrete collaborators used by the
// commands.
package app

import (
	"go.uber.org/zap"

	"github.com/mfareport/cli/internal/api"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/logging"
	"github.com/mfareport/cli/internal/mailer"
	"github.com/mfareport/cli/internal/metrics"
	"github.com/mfareport/cli/internal/pipeline"
)

// NewLogger builds the structured logger from cfg
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Debug:  config.IsDebug(),
	})
}

// NewClient creates a platform API client from cfg
func NewClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.Platform.URL, cfg.Platform.Timeout)
	client.TenantID = cfg.Platform.TenantID
	return client
}

// NewMailer creates the SMTP dispatcher from cfg
func NewMailer(cfg *config.Config) *mailer.Mailer {
	return mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.Sender(),
		Timeout:  cfg.SMTP.Timeout,
	})
}

// NewRunner assembles a pipeline runner with the run lock and metrics enabled
func NewRunner(cfg *config.Config, logger *zap.Logger, opts pipeline.Options) *pipeline.Runner {
	if opts.LockPath == "" {
		opts.LockPath = cfg.Run.LockPath()
		opts.LockStaleAfter = cfg.Run.LockStaleAfter
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRecorder()
		opts.MetricsFile = cfg.Metrics.Textfile
	}
	return pipeline.NewRunner(cfg, NewClient(cfg), NewMailer(cfg), logger, opts)
}
