// Package pipeline runs one report pass: authenticate, fetch, match, reduce,
// compose and deliver.
//
// Every stage before delivery fails the run. A delivery failure is logged and
// recorded on the Result but never returned, so a scheduled run still exits
// cleanly once the report could not be sent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfareport/cli/internal/compliance"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/lock"
	"github.com/mfareport/cli/internal/mailer"
	"github.com/mfareport/cli/internal/metrics"
	"github.com/mfareport/cli/internal/models"
	"github.com/mfareport/cli/internal/report"
	"github.com/mfareport/cli/internal/utils"
)

// Directory is the platform side of the pipeline
type Directory interface {
	Authenticate(ctx context.Context, username, password string) (*models.Session, error)
	ListUsers(ctx context.Context, session *models.Session, params models.PaginationParams) (*models.Listing, error)
}

// Sender delivers the rendered report
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Options tune a runner
type Options struct {
	// LockPath guards against overlapping runs; empty disables the guard
	LockPath       string
	LockStaleAfter time.Duration
	// DryRun writes the report to DryRunOut instead of sending it
	DryRun    bool
	DryRunOut io.Writer
	Metrics   *metrics.Recorder
	// MetricsFile is written after every run when set
	MetricsFile string
}

// Result describes what a run saw and did
type Result struct {
	RunID        string
	TenantID     string
	Fetched      int
	Pages        int
	Truncated    bool
	Matched      []models.User
	NonCompliant []models.User
	Unknown      []models.User
	Report       report.Report
	Delivered    bool
	// DeliveryErr is set when the report could not be sent
	DeliveryErr error
}

// Runner executes the pipeline with explicit collaborators
type Runner struct {
	cfg    *config.Config
	dir    Directory
	sender Sender
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewRunner creates a runner. A nil logger is replaced by a no-op logger.
func NewRunner(cfg *config.Config, dir Directory, sender Sender, logger *zap.Logger, opts Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		dir:    dir,
		sender: sender,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Run performs one full pass
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	started := r.now()
	res = &Result{RunID: uuid.NewString()}
	log := r.logger.With(zap.String("run_id", res.RunID))

	defer func() {
		r.record(log, started, res, err)
	}()

	if r.opts.LockPath != "" {
		l, lerr := lock.Acquire(r.opts.LockPath, r.opts.LockStaleAfter)
		if lerr != nil {
			return res, lerr
		}
		defer func() {
			if rerr := l.Release(); rerr != nil {
				log.Warn("lock release failed", zap.Error(rerr))
			}
		}()
	}

	log.Info("report run started", zap.String("platform", r.cfg.Platform.URL))

	if err := r.collect(ctx, log, res); err != nil {
		return res, err
	}

	res.Report = report.Compose(report.Options{
		Customer: r.cfg.Report.Customer,
		Platform: r.cfg.Platform.Name,
		Subject:  r.cfg.Report.Subject,
	}, res.NonCompliant)

	if r.opts.DryRun {
		if r.opts.DryRunOut != nil {
			fmt.Fprint(r.opts.DryRunOut, res.Report.Body)
		}
		log.Info("dry run, report not sent", zap.Int("noncompliant", len(res.NonCompliant)))
		return res, nil
	}

	r.deliver(ctx, log, res)
	return res, nil
}

// Collect authenticates, fetches and filters without composing or sending
func (r *Runner) Collect(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	err := r.collect(ctx, r.logger.With(zap.String("run_id", res.RunID)), res)
	return res, err
}

func (r *Runner) collect(ctx context.Context, log *zap.Logger, res *Result) error {
	session, err := r.dir.Authenticate(ctx, r.cfg.Platform.Username, r.cfg.Platform.Password)
	if err != nil {
		log.Error("authentication failed", zap.Error(err))
		return utils.NewStageError(utils.StageAuth, err)
	}
	res.TenantID = session.TenantID
	log.Debug("authenticated", zap.String("tenant_id", session.TenantID))

	listing, err := r.dir.ListUsers(ctx, session, models.PaginationParams{
		Limit:    r.cfg.Platform.PageSize,
		MaxPages: r.cfg.Platform.MaxPages,
	})
	if err != nil {
		log.Error("directory fetch failed", zap.Error(err))
		return utils.NewStageError(utils.StageFetch, err)
	}
	res.Fetched = listing.Len()
	res.Pages = listing.Pages
	res.Truncated = listing.Truncated
	if listing.Truncated {
		log.Warn("directory listing truncated", zap.Int("pages", listing.Pages), zap.Int("entries", listing.Len()))
		format.PrintWarning("User listing stopped after %d pages; raise platform.max_pages to cover every user", listing.Pages)
	}
	if listing.OffsetIgnored {
		log.Warn("directory repeated a full page, server appears to ignore offset", zap.Int("pages", listing.Pages), zap.Int("entries", listing.Len()))
		format.PrintWarning("User listing repeated page %d; the platform appears to ignore offset, so only %d users were read", listing.Pages, listing.Len())
	}

	res.Matched = compliance.Match(listing, r.cfg.Report.Domains)
	res.NonCompliant = compliance.NonCompliant(res.Matched)
	res.Unknown = compliance.Unknown(res.Matched)
	for _, u := range res.Unknown {
		log.Warn("no MFA record, reporting as non-compliant", zap.String("email", u.Email))
	}

	log.Info("directory filtered",
		zap.Int("fetched", res.Fetched),
		zap.Int("matched", len(res.Matched)),
		zap.Int("noncompliant", len(res.NonCompliant)),
		zap.Int("unknown_mfa", len(res.Unknown)))
	return nil
}

func (r *Runner) deliver(ctx context.Context, log *zap.Logger, res *Result) {
	err := r.sender.Send(ctx, mailer.Message{
		To:      r.cfg.Report.Recipient,
		Subject: res.Report.Subject,
		Body:    res.Report.Body,
	})
	if err != nil {
		res.DeliveryErr = utils.NewStageError(utils.StageDelivery, err)
		log.Error("report delivery failed",
			zap.String("kind", string(utils.DeliveryKindOf(err))),
			zap.String("recipient", r.cfg.Report.Recipient),
			zap.Error(err))
		format.PrintError("Error sending email: %v", err)
		return
	}

	res.Delivered = true
	log.Info("report delivered", zap.String("recipient", r.cfg.Report.Recipient))
	format.PrintSuccess("Email sent successfully to %s", r.cfg.Report.Recipient)
}

func (r *Runner) record(log *zap.Logger, started time.Time, res *Result, err error) {
	if r.opts.Metrics == nil {
		return
	}
	stats := metrics.RunStats{
		Started:      started,
		Duration:     r.now().Sub(started),
		Success:      err == nil && res.DeliveryErr == nil,
		Matched:      len(res.Matched),
		NonCompliant: len(res.NonCompliant),
		UnknownMFA:   len(res.Unknown),
	}
	if res.DeliveryErr != nil {
		stats.DeliveryFailure = string(utils.DeliveryKindOf(res.DeliveryErr))
	}
	if errors.Is(err, lock.ErrLocked) {
		// the run holding the lock owns the metrics
		return
	}
	r.opts.Metrics.Observe(stats)
	if werr := r.opts.Metrics.WriteTextfile(r.opts.MetricsFile); werr != nil {
		log.Warn("metrics not written", zap.Error(werr))
	}
}
