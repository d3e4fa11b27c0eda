package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/generation"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/envutil"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
	"github.com/usaspending/data-broker/internal/validation"
)

// Pool consumes the validation and generation queues. Each consumer is
// a thin claim, process, ack loop; job state and counts are owned by
// the validator and the generation coordinator.
type Pool struct {
	db          *gorm.DB
	log         *logger.Logger
	repos       *repos.All
	queue       queue.WorkQueue
	graph       *jobgraph.Graph
	validator   *validation.Validator
	builder     *generation.Builder
	coordinator *generation.Coordinator

	concurrency      int
	claimWait        time.Duration
	maxAttempts      int
	jobTimeout       time.Duration
	watchdogInterval time.Duration
}

func NewPool(
	db *gorm.DB,
	baseLog *logger.Logger,
	all *repos.All,
	wq queue.WorkQueue,
	graph *jobgraph.Graph,
	validator *validation.Validator,
	builder *generation.Builder,
	coordinator *generation.Coordinator,
) *Pool {
	return &Pool{
		db:          db,
		log:         baseLog.With("service", "WorkerPool"),
		repos:       all,
		queue:       wq,
		graph:       graph,
		validator:   validator,
		builder:     builder,
		coordinator: coordinator,

		concurrency:      envutil.Int("WORKER_CONCURRENCY", 4),
		claimWait:        envutil.Duration("WORKER_CLAIM_WAIT", 5*time.Second),
		maxAttempts:      envutil.Int("WORKER_MAX_ATTEMPTS", 3),
		jobTimeout:       envutil.Duration("JOB_TIMEOUT", 30*time.Minute),
		watchdogInterval: envutil.Duration("WATCHDOG_INTERVAL", time.Minute),
	}
}

// Run blocks until ctx is cancelled, consuming both queues with the
// configured concurrency plus one watchdog.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range []string{queue.QueueValidation, queue.QueueGeneration} {
		for i := 0; i < p.concurrency; i++ {
			queueName := name
			g.Go(func() error { return p.consume(ctx, queueName) })
		}
	}
	g.Go(func() error { return p.watchdog(ctx) })
	p.log.Info("worker pool started", "concurrency", p.concurrency)
	return g.Wait()
}

func (p *Pool) consume(ctx context.Context, queueName string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := p.queue.Claim(ctx, queueName, p.claimWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("claim failed", "queue", queueName, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}
		p.handle(ctx, msg)
	}
}

// handle drives one message to ack. Transient failures back the
// message out for redelivery until the attempt budget runs out; every
// other failure is terminal for the job.
func (p *Pool) handle(ctx context.Context, msg *queue.Message) {
	dbc := dbctx.Context{Ctx: ctx}
	log := p.log.With("queue", msg.Queue, "job_id", msg.Attributes["job_id"])

	jobID, err := uuid.Parse(msg.Attributes["job_id"])
	if err != nil {
		log.Error("message carries no parsable job id, dropping")
		p.ack(ctx, msg)
		return
	}
	job, err := p.repos.Jobs.GetByID(dbc, jobID)
	if err != nil {
		log.Error("could not load job", "error", err)
		p.backoutOrDrop(ctx, msg, log)
		return
	}
	if job == nil || job.Status.Terminal() {
		p.ack(ctx, msg)
		return
	}

	now := time.Now()
	claimed, err := p.repos.Jobs.TransitionStatus(dbc, job.ID,
		[]types.JobStatus{types.StatusReady, types.StatusRunning}, types.StatusRunning,
		map[string]interface{}{
			"started_at": now,
			"attempts":   job.Attempts + 1,
		})
	if err != nil {
		log.Error("could not mark job running", "error", err)
		p.backoutOrDrop(ctx, msg, log)
		return
	}
	if !claimed {
		// Not dispatchable; another state owns it.
		p.ack(ctx, msg)
		return
	}
	job.Status = types.StatusRunning

	if err := p.process(dbc, msg, job); err != nil {
		if errs.IsTransient(err) && msg.Deliveries < p.maxAttempts {
			log.Warn("transient failure, backing out", "attempt", msg.Deliveries, "error", err)
			if berr := p.queue.Backout(ctx, msg); berr != nil {
				log.Error("backout failed", "error", berr)
			}
			return
		}
		log.Error("job failed", "error", err)
		p.failTerminal(dbc, msg, job, err)
	}
	p.ack(ctx, msg)
}

func (p *Pool) process(dbc dbctx.Context, msg *queue.Message, job *types.Job) error {
	switch msg.Queue {
	case queue.QueueGeneration:
		rawGenID := msg.Attributes["file_generation_id"]
		if rawGenID == "" {
			// Jobs dispatched by graph advancement (file E after the D
			// validations) carry no generation yet; resolve one against
			// the cache for the submission's reporting window. On a miss
			// the coordinator enqueues a follow-up message with the id.
			return p.startAdvancedGeneration(dbc, job)
		}
		genID, err := uuid.Parse(rawGenID)
		if err != nil {
			return errs.Internal(err, "message carries a bad file generation id")
		}
		gen, err := p.repos.FileGen.GetByID(dbc, genID)
		if err != nil {
			return err
		}
		if gen == nil {
			return errs.Internal(errs.ErrNotFound, "file generation %s vanished", genID)
		}
		artifactPath, rows, err := p.builder.Build(dbc, gen)
		if err != nil {
			return err
		}
		return p.coordinator.CompleteGeneration(dbc, gen.ID, artifactPath, rows)
	default:
		return p.validator.Run(dbc, job)
	}
}

func (p *Pool) startAdvancedGeneration(dbc dbctx.Context, job *types.Job) error {
	sub, err := p.repos.Submissions.GetByID(dbc, job.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return errs.Internal(errs.ErrNotFound, "submission %s vanished", job.SubmissionID)
	}
	role := types.RoleNone
	if job.FileType == types.FileTypeD1 || job.FileType == types.FileTypeD2 {
		role = types.RoleAwarding
	}
	start, end := types.ReportingWindow(sub.ReportingFiscalYear, sub.ReportingFiscalPeriod, sub.Cadence)
	_, err = p.coordinator.StartGeneration(dbc, job,
		types.FormatMMDDYYYY(start), types.FormatMMDDYYYY(end),
		sub.AgencyCode(), role)
	return err
}

// failTerminal records a job's final failure. Generation failures go
// through the coordinator so the shared cache row is released too.
func (p *Pool) failTerminal(dbc dbctx.Context, msg *queue.Message, job *types.Job, cause error) {
	message := cause.Error()
	if message == "" {
		message = jobgraph.FallbackMessage(job.JobType)
	}
	if msg.Queue == queue.QueueGeneration {
		if genID, err := uuid.Parse(msg.Attributes["file_generation_id"]); err == nil {
			if err := p.coordinator.FailGeneration(dbc, genID, message); err != nil {
				p.log.Error("could not fail generation", "file_generation_id", genID, "error", err)
			}
			return
		}
	}
	if err := p.graph.MarkStatus(dbc, job.ID, types.StatusFailed, map[string]interface{}{
		"error_message": message,
	}); err != nil {
		p.log.Error("could not fail job", "job_id", job.ID, "error", err)
		return
	}
	if err := p.validator.Rollup(dbc, job.SubmissionID); err != nil {
		p.log.Error("could not roll up submission counts", "submission_id", job.SubmissionID, "error", err)
	}
}

func (p *Pool) ack(ctx context.Context, msg *queue.Message) {
	if err := p.queue.Ack(ctx, msg); err != nil {
		p.log.Error("ack failed", "queue", msg.Queue, "error", err)
	}
}

func (p *Pool) backoutOrDrop(ctx context.Context, msg *queue.Message, log *logger.Logger) {
	if msg.Deliveries < p.maxAttempts {
		if err := p.queue.Backout(ctx, msg); err != nil {
			log.Error("backout failed", "error", err)
		}
		return
	}
	log.Error("dropping message after repeated failures")
	p.ack(ctx, msg)
}

// watchdog fails jobs running past the timeout and requeues stale
// claimed messages from dead workers.
func (p *Pool) watchdog(ctx context.Context) error {
	ticker := time.NewTicker(p.watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		dbc := dbctx.Context{Ctx: ctx}

		overrunning, err := p.repos.Jobs.ListOverrunning(dbc, time.Now().Add(-p.jobTimeout))
		if err != nil {
			p.log.Error("could not list overrunning jobs", "error", err)
		}
		for _, job := range overrunning {
			message := jobgraph.FallbackMessage(job.JobType)
			if job.JobType == types.JobTypeFileGen && job.FileGenerationID != nil {
				if err := p.coordinator.FailGeneration(dbc, *job.FileGenerationID, message); err != nil {
					p.log.Error("could not fail stuck generation", "job_id", job.ID, "error", err)
				}
				continue
			}
			if err := p.graph.MarkStatus(dbc, job.ID, types.StatusFailed, map[string]interface{}{
				"error_message": message,
			}); err != nil {
				p.log.Error("could not fail stuck job", "job_id", job.ID, "error", err)
			}
		}

		for _, name := range []string{queue.QueueValidation, queue.QueueGeneration} {
			requeued, err := p.queue.ReapStale(ctx, name, p.jobTimeout)
			if err != nil {
				p.log.Error("reap failed", "queue", name, "error", err)
				continue
			}
			if requeued > 0 {
				p.log.Warn("requeued stale messages", "queue", name, "count", requeued)
			}
		}
	}
}
