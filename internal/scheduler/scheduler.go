package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/awardfeed"
	"github.com/usaspending/data-broker/internal/clients/feeds"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/lifecycle"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/envutil"
	"github.com/usaspending/data-broker/internal/platform/logger"
	"github.com/usaspending/data-broker/internal/subawards"
)

// Scheduler owns the recurring maintenance work: feed loads, subaward
// pulls, link repair and submission cleanup. Schedules are cron
// expressions taken from the environment so operators can stagger
// them per deployment.
type Scheduler struct {
	db         *gorm.DB
	log        *logger.Logger
	repos      *repos.All
	loader     *awardfeed.Loader
	puller     *subawards.Puller
	reconciler *subawards.Reconciler
	lifecycle  *lifecycle.Controller

	cron *cron.Cron

	// Unpublished submissions idle longer than this are deleted.
	retention time.Duration
	// Feed loads cover this much history on each run.
	loadWindow time.Duration
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	all *repos.All,
	loader *awardfeed.Loader,
	puller *subawards.Puller,
	reconciler *subawards.Reconciler,
	controller *lifecycle.Controller,
) *Scheduler {
	return &Scheduler{
		db:         db,
		log:        baseLog.With("service", "Scheduler"),
		repos:      all,
		loader:     loader,
		puller:     puller,
		reconciler: reconciler,
		lifecycle:  controller,
		cron:       cron.New(),
		retention:  envutil.Duration("SUBMISSION_RETENTION", 180*24*time.Hour),
		loadWindow: envutil.Duration("FEED_LOAD_WINDOW", 48*time.Hour),
	}
}

// Start registers every entry and launches the cron loop. Stop with
// Stop; jobs in flight finish.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := []struct {
		name string
		env  string
		def  string
		run  func(dbctx.Context) error
	}{
		{"load-procurement", "CRON_LOAD_PROCUREMENT", "0 3 * * *", s.loadProcurement},
		{"load-assistance", "CRON_LOAD_ASSISTANCE", "30 3 * * *", s.loadAssistance},
		{"pull-subawards", "CRON_PULL_SUBAWARDS", "0 5 * * *", s.pullSubawards},
		{"fix-subaward-links", "CRON_FIX_SUBAWARD_LINKS", "0 6 * * *", s.fixLinks},
		{"clean-submissions", "CRON_CLEAN_SUBMISSIONS", "0 7 * * 0", s.cleanSubmissions},
	}
	for _, entry := range entries {
		spec := envutil.Str(entry.env, entry.def)
		name, run := entry.name, entry.run
		_, err := s.cron.AddFunc(spec, func() {
			started := time.Now()
			if err := run(dbctx.Context{Ctx: ctx}); err != nil {
				s.log.Error("scheduled task failed", "task", name, "error", err)
				return
			}
			s.log.Info("scheduled task complete", "task", name, "elapsed", time.Since(started))
		})
		if err != nil {
			return err
		}
		s.log.Info("scheduled", "task", name, "spec", spec)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) window() feeds.Window {
	now := time.Now()
	return feeds.Window{Start: now.Add(-s.loadWindow), End: now}
}

func (s *Scheduler) loadProcurement(dbc dbctx.Context) error {
	_, err := s.loader.LoadProcurement(dbc, s.window(), false)
	return err
}

func (s *Scheduler) loadAssistance(dbc dbctx.Context) error {
	_, err := s.loader.LoadAssistance(dbc, s.window(), false)
	return err
}

func (s *Scheduler) pullSubawards(dbc dbctx.Context) error {
	since, err := s.repos.LoadDates.Get(dbc, types.SourceSubaward)
	if err != nil {
		return err
	}
	for _, kind := range []types.SubawardKind{types.SubawardContract, types.SubawardGrant} {
		if _, err := s.puller.Pull(dbc, kind, since); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) fixLinks(dbc dbctx.Context) error {
	for _, kind := range []types.SubawardKind{types.SubawardContract, types.SubawardGrant} {
		if _, err := s.reconciler.FixBrokenLinks(dbc, kind, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) cleanSubmissions(dbc dbctx.Context) error {
	_, err := s.lifecycle.CleanExpired(dbc, time.Now().Add(-s.retention))
	return err
}
