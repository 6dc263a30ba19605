package worker_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-control-plane/internal/client"
	"ingest-control-plane/internal/handlers"
	"ingest-control-plane/internal/models"
	"ingest-control-plane/internal/repository"
	"ingest-control-plane/internal/routes"
	"ingest-control-plane/internal/worker"
)

type fixture struct {
	mem    *repository.Memory
	srv    *httptest.Server
	worker *worker.Worker
}

func newFixture(t *testing.T, progressEvery int) *fixture {
	t.Helper()
	mem := repository.NewMemory()
	logger := zerolog.Nop()
	router := routes.NewRouter(
		handlers.NewSourceHandler(mem.SourceRepository(), logger),
		handlers.NewJobHandler(mem.JobRepository(), logger),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	w := worker.New(worker.Config{
		Client:        client.New(srv.URL, 5*time.Second),
		PollInterval:  10 * time.Millisecond,
		ProgressEvery: progressEvery,
		Logger:        logger,
	})
	return &fixture{mem: mem, srv: srv, worker: w}
}

// queueJob creates a source pointing at csvPath and a QUEUED job against it.
func (f *fixture) queueJob(t *testing.T, csvPath string) models.Job {
	t.Helper()
	src, err := f.mem.SourceRepository().Create("orders", models.SourceKindCSV,
		models.JSONMap{models.ConfigKeyCSVPath: csvPath})
	require.NoError(t, err)
	job, err := f.mem.JobRepository().Create(src.ID)
	require.NoError(t, err)
	return job
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const fiveRowCSV = `order_id,customer,amount
1001,alice,19.99
1002,bob,4.50
1003,carol,120.00
1004,dave,36.25
1005,erin,8.75
`

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, 2)
	job := f.queueJob(t, writeCSV(t, fiveRowCSV))

	require.NoError(t, f.worker.Run(job))

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, final.Status)
	require.NotNil(t, final.Checkpoint)
	assert.Equal(t, "5", *final.Checkpoint)
	assert.Equal(t, float64(5), final.Metrics["rows_read"])
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.FinishedAt)

	events, err := f.mem.JobRepository().ListEvents(job.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, models.EventJobStarted, events[0].Type)
	assert.Equal(t, models.EventProgress, events[1].Type)
	assert.Equal(t, float64(2), events[1].Payload["rows_read"])
	assert.Equal(t, models.EventProgress, events[2].Type)
	assert.Equal(t, float64(4), events[2].Payload["rows_read"])
	assert.Equal(t, models.EventJobFinished, events[3].Type)
	assert.Equal(t, float64(5), events[3].Payload["rows_read"])

	errs, err := f.mem.JobRepository().ListErrors(job.ID)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRunMissingFile(t *testing.T) {
	f := newFixture(t, 2)
	job := f.queueJob(t, filepath.Join(t.TempDir(), "missing.csv"))

	require.NoError(t, f.worker.Run(job))

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.Nil(t, final.StartedAt, "no RUNNING transition happened")
	assert.NotNil(t, final.FinishedAt)

	errs, err := f.mem.JobRepository().ListErrors(job.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrCodeFileNotFound, errs[0].Code)
	assert.False(t, errs[0].Retryable)

	events, err := f.mem.JobRepository().ListEvents(job.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunMidReadFailureKeepsCheckpoint(t *testing.T) {
	f := newFixture(t, 2)
	// row 3 has an unterminated quote; rows 1-2 parse fine
	path := writeCSV(t, "order_id,customer\n1,alice\n2,bob\n3,\"broken\n")
	job := f.queueJob(t, path)

	require.NoError(t, f.worker.Run(job))

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, final.Status)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.FinishedAt)
	// last committed progress survives the failure
	require.NotNil(t, final.Checkpoint)
	assert.Equal(t, "2", *final.Checkpoint)
	assert.Equal(t, float64(2), final.Metrics["rows_read"])

	errs, err := f.mem.JobRepository().ListErrors(job.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrCodeCSVRead, errs[0].Code)
	assert.True(t, errs[0].Retryable)

	events, err := f.mem.JobRepository().ListEvents(job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventJobStarted, events[0].Type)
	assert.Equal(t, models.EventProgress, events[1].Type)
}

func TestProgressCadence(t *testing.T) {
	f := newFixture(t, 2)
	// 7 data rows at cadence 2 means floor(7/2) = 3 PROGRESS events
	csv := "id\n1\n2\n3\n4\n5\n6\n7\n"
	job := f.queueJob(t, writeCSV(t, csv))

	require.NoError(t, f.worker.Run(job))

	events, err := f.mem.JobRepository().ListEvents(job.ID)
	require.NoError(t, err)
	var progress []models.Event
	for _, evt := range events {
		if evt.Type == models.EventProgress {
			progress = append(progress, evt)
		}
	}
	require.Len(t, progress, 3)
	assert.Equal(t, float64(2), progress[0].Payload["rows_read"])
	assert.Equal(t, float64(4), progress[1].Payload["rows_read"])
	assert.Equal(t, float64(6), progress[2].Payload["rows_read"])

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Checkpoint)
	assert.Equal(t, "7", *final.Checkpoint)
}

func TestRunEmptyCSV(t *testing.T) {
	f := newFixture(t, 2)
	job := f.queueJob(t, writeCSV(t, "order_id,customer\n"))

	require.NoError(t, f.worker.Run(job))

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, final.Status)
	assert.Equal(t, float64(0), final.Metrics["rows_read"])
}

func TestCSVPathOverride(t *testing.T) {
	mem := repository.NewMemory()
	logger := zerolog.Nop()
	router := routes.NewRouter(
		handlers.NewSourceHandler(mem.SourceRepository(), logger),
		handlers.NewJobHandler(mem.JobRepository(), logger),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	override := filepath.Join(t.TempDir(), "override.csv")
	require.NoError(t, os.WriteFile(override, []byte(fiveRowCSV), 0644))

	w := worker.New(worker.Config{
		Client:          client.New(srv.URL, 5*time.Second),
		PollInterval:    10 * time.Millisecond,
		ProgressEvery:   2,
		CSVPathOverride: override,
		Logger:          logger,
	})

	src, err := mem.SourceRepository().Create("orders", models.SourceKindCSV,
		models.JSONMap{models.ConfigKeyCSVPath: "./does-not-exist.csv"})
	require.NoError(t, err)
	job, err := mem.JobRepository().Create(src.ID)
	require.NoError(t, err)

	require.NoError(t, w.Run(job))

	final, err := mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, final.Status)
}

func TestStartClaimsQueuedJob(t *testing.T) {
	f := newFixture(t, 2)
	job := f.queueJob(t, writeCSV(t, fiveRowCSV))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.worker.Start(ctx)

	require.Eventually(t, func() bool {
		current, err := f.mem.JobRepository().Get(job.ID)
		return err == nil && current.Status.Terminal()
	}, 2*time.Second, 20*time.Millisecond, "worker never drove the queued job to a terminal state")

	final, err := f.mem.JobRepository().Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, final.Status)
}
