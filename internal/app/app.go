// Package app builds the configured ledger store, message source, labeler
// and escalation sink, and exposes batch runs to the job queue.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
	"github.com/dvloznov/bankmail-ledger/internal/escalation"
	"github.com/dvloznov/bankmail-ledger/internal/extractor"
	"github.com/dvloznov/bankmail-ledger/internal/gcs"
	infraBQ "github.com/dvloznov/bankmail-ledger/internal/infra/bigquery"
	"github.com/dvloznov/bankmail-ledger/internal/infra/notion"
	"github.com/dvloznov/bankmail-ledger/internal/jobs"
	"github.com/dvloznov/bankmail-ledger/internal/labels"
	"github.com/dvloznov/bankmail-ledger/internal/ledger"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
	"github.com/dvloznov/bankmail-ledger/internal/mailsource"
	"github.com/dvloznov/bankmail-ledger/internal/processor"
)

// LabelRegistryPrefix holds label marker objects in the source bucket.
const LabelRegistryPrefix = "_labels"

// App is a wired processor plus the resources it holds open.
type App struct {
	Config    config.Config
	Processor *processor.Processor
	Store     ledger.Store
	Extractor *extractor.Extractor

	closers []func() error
}

// Build validates cfg and wires every backend it names.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	a := &App{Config: cfg, Extractor: extractor.New()}

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	source, labeler, err := a.newSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	sink, err := NewSink(ctx, cfg.Escalation)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Processor = processor.New(cfg, processor.Deps{
		Source:    source,
		Store:     store,
		Labeler:   labeler,
		Sink:      sink,
		Extractor: a.Extractor,
		Detector:  processor.DetectorFromConfig(cfg.Dedup),
	})
	return a, nil
}

// Close releases backend clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newStore(ctx context.Context) (ledger.Store, error) {
	c := a.Config.Ledger
	switch c.Backend {
	case config.BackendBigQuery:
		s, err := infraBQ.NewLedgerStore(ctx, c.Project, c.Dataset, c.ID)
		if err != nil {
			return nil, fmt.Errorf("Build: ledger: %w: %w", domain.ErrTransport, err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendNotion:
		return notion.NewLedgerStore(notion.NewClient(c.NotionToken), c.ID), nil
	default:
		return ledger.NewMemoryStore(), nil
	}
}

func (a *App) newSource(ctx context.Context) (mailsource.Source, labels.Labeler, error) {
	c := a.Config.Source
	switch c.Backend {
	case config.BackendGCS:
		name, prefix := c.Bucket, c.Prefix
		// source.bucket may also be a gs://bucket/prefix URI.
		if strings.HasPrefix(name, "gs://") {
			var err error
			if name, prefix, err = gcs.ParseURI(name); err != nil {
				return nil, nil, fmt.Errorf("Build: source: %w: %w", domain.ErrConfiguration, err)
			}
			if c.Prefix != "" {
				prefix = path.Join(prefix, c.Prefix)
			}
		}
		bucket, err := gcs.NewBucket(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("Build: source: %w: %w", domain.ErrTransport, err)
		}
		a.closers = append(a.closers, bucket.Close)
		return mailsource.NewGCSSource(bucket, prefix), labels.NewGCSLabeler(bucket, LabelRegistryPrefix), nil
	default:
		return mailsource.NewDirSource(c.Dir), labels.NewDirLabeler(c.Dir), nil
	}
}

// NewSink builds the configured escalation sink.
func NewSink(ctx context.Context, c config.EscalationConfig) (escalation.Sink, error) {
	switch c.Backend {
	case config.BackendWebhook:
		return escalation.NewWebhookSink(c.URL, c.Timeout), nil
	case config.BackendGemini:
		s, err := escalation.NewGeminiSink(ctx, c.Model, c.Timeout)
		if err != nil {
			return nil, fmt.Errorf("Build: escalation: %w", err)
		}
		return s, nil
	default:
		return escalation.NopSink{}, nil
	}
}

// BatchHandler runs one batch per job and records its counts on the job.
// Configuration failures are not retried.
func BatchHandler(p *processor.Processor) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.BatchJob) error {
		log := logger.FromContext(ctx)
		log.Info().Msg("Running batch job")

		summary, err := p.RunBatch(ctx)
		if summary != nil {
			job.BatchID = summary.BatchID
			job.Summary = Counts(summary)
		}
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) {
				return fmt.Errorf("%w: %w", jobs.ErrNoRetry, err)
			}
			return err
		}

		log.Info().Str("batch_id", summary.BatchID).Msg("Batch job completed")
		return nil
	}
}

// Counts converts a batch summary into job counts.
func Counts(s *processor.Summary) *jobs.BatchCounts {
	return &jobs.BatchCounts{
		Total:      s.Total,
		Recorded:   s.Recorded,
		Duplicates: s.Duplicates,
		Escalated:  s.Escalated,
		Skipped:    s.Skipped,
		Errors:     s.Errors,
	}
}
