package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nicayne/internal/logger"
	"nicayne/pkg/models"
)

// State is a step of the extraction job.
type State string

const (
	StateValidating       State = "VALIDATING"
	StateSinglePage       State = "SINGLE_PAGE"
	StateMultiPage        State = "MULTI_PAGE"
	StateNormalizing      State = "NORMALIZING"
	StateBackingUp        State = "BACKING_UP"
	StateWriting          State = "WRITING"
	StateValidatingCounts State = "VALIDATING_COUNTS"
	StateDone             State = "DONE"
	StateError            State = "ERROR"
)

// Job is the working state of one PDF run.
type Job struct {
	ID          string
	SourcePath  string
	Supplier    string
	PageCount   int
	PageTexts   map[int]string
	Records     []models.NormalizedRecord
	Expected    int
	Written     int
	Duplicates  int
	BackupPath  string
	FailedPages []int
	State       State

	pagesProcessed int
	pagesDropped   int
	sheetRow       int
	err            error
	writeErr       error
	started        time.Time
	log            zerolog.Logger
}

func newJob(path, supplier string) *Job {
	id := uuid.NewString()
	return &Job{
		ID:          id,
		SourcePath:  path,
		Supplier:    supplier,
		PageTexts:   make(map[int]string),
		FailedPages: []int{},
		State:       StateValidating,
		started:     time.Now(),
		log:         logger.WithJob("pipeline", id),
	}
}

func (j *Job) transition(to State) {
	j.log.Info().Str("from", string(j.State)).Str("to", string(to)).Msg("Job state transition")
	j.State = to
}

// fail moves the job to ERROR and keeps the first failure.
func (j *Job) fail(err error) {
	if j.err == nil {
		j.err = err
	}
	j.log.Error().Err(err).Str("state", string(j.State)).Msg("Job failed")
	j.transition(StateError)
}

func (j *Job) result(document string) *models.JobResult {
	res := &models.JobResult{
		JobID:          j.ID,
		Success:        j.err == nil && j.State == StateDone,
		State:          string(j.State),
		Supplier:       j.Supplier,
		Document:       document,
		CoilsProcessed: len(j.Records),
		Data:           j.Records,
		PagesProcessed: j.pagesProcessed,
		PagesDropped:   j.pagesDropped,
		FailedPages:    j.FailedPages,
		BackupCreated:  j.BackupPath != "",
		BackupPath:     j.BackupPath,
		SheetRow:       j.sheetRow,
		Duration:       time.Since(j.started).Round(time.Millisecond).String(),
	}
	// A failed job never validated its counts, so it cannot match.
	res.CountValidation = &models.CountValidation{
		Expected:   j.Expected,
		Written:    j.Written,
		Duplicates: j.Duplicates,
		Match:      j.err == nil && j.writeErr == nil && j.Written+j.Duplicates == j.Expected,
	}
	switch {
	case j.err != nil:
		res.ErrorKind = string(KindOf(j.err))
		res.Error = j.err.Error()
	case j.writeErr != nil:
		res.ErrorKind = string(KindOf(j.writeErr))
		res.Error = j.writeErr.Error()
	}
	return res
}
