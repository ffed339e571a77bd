package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/filereader"
	"github.com/hondanabooks/hondana/pkg/jobs"
	"github.com/hondanabooks/hondana/pkg/libraries"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/notify"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/hondanabooks/hondana/pkg/reconciler"
	"github.com/hondanabooks/hondana/pkg/series"
	"github.com/hondanabooks/hondana/pkg/taxonomy"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	jobService      *jobs.Service
	libraryService  *libraries.Service
	seriesService   *series.Service
	taxonomyService *taxonomy.Service
	taxonomyCache   *taxonomy.Cache
	reconciler      *reconciler.Reconciler
	classifier      parser.Classifier
	sink            notify.Sink

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	log := logger.New()
	jobService := jobs.NewService(db)
	libraryService := libraries.NewService(db)
	seriesService := series.NewService(db)
	taxonomyService := taxonomy.NewService(db)
	taxonomyCache := taxonomy.NewCache(log, taxonomyService)
	reader := filereader.NewArchiveReader()
	sink := notify.NewLogSink(log)

	w := &Worker{
		config: cfg,
		log:    log,

		jobService:      jobService,
		libraryService:  libraryService,
		seriesService:   seriesService,
		taxonomyService: taxonomyService,
		taxonomyCache:   taxonomyCache,
		reconciler:      reconciler.New(log, seriesService, taxonomyCache, taxonomyService, reader, sink, jobService),
		classifier: &parser.DefaultClassifier{
			ReadMetadata: func(path string) *parser.Metadata {
				metadata, err := reader.ReadMetadata(path)
				if err != nil {
					log.Err(err).Warn("reading embedded metadata failed")
					return nil
				}
				return metadata
			},
		},
		sink: sink,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeScanLibrary:        w.ProcessScanLibraryJob,
		models.JobTypeScanFolder:         w.ProcessScanFolderJob,
		models.JobTypeScanSeries:         w.ProcessScanSeriesJob,
		models.JobTypeRefreshCollections: w.ProcessRefreshCollectionsJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := 5 * time.Second
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				w.queue <- job
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
			ctx := log.WithContext(context.Background())

			// Update job to be in progress and claimed by this process.
			job.Status = models.JobStatusInProgress
			job.ProcessID = &processID

			err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
				Columns: []string{"status", "process_id"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}

			// Find and invoke the appropriate process function.
			fn, ok := w.processFuncs[job.Type]
			if !ok {
				log.Error("can't find process function for type")
				continue
			}

			job.Status = models.JobStatusCompleted
			if err := fn(ctx, job); err != nil {
				log.Err(err).Error("process error")
				job.Status = models.JobStatusFailed
			}

			err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
				Columns: []string{"status"},
			})
			if err != nil {
				log.Err(err).Error("update job error")
				continue
			}
		}
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
