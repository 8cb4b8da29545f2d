package plagiarism

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/metrics"
	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/rs/zerolog/log"
)

// CorpusSource supplies the reference corpus. Both corpus.Store and
// corpus.Cache satisfy it.
type CorpusSource interface {
	Load(ctx context.Context) (corpus.Corpus, error)
}

// ReportStore persists finished check reports
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.CheckReport) error
}

// StatusRecorder tracks the progress of a queued check
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, checkID string, step models.Step) error
}

// Detector scores submissions against the local reference corpus.
type Detector struct {
	source CorpusSource
}

func NewDetector(source CorpusSource) *Detector {
	return &Detector{
		source: source,
	}
}

// resolve returns docs when supplied, otherwise loads the corpus.
// A nil corpus means "not supplied"; an empty non-nil corpus is used as is.
func (d *Detector) resolve(ctx context.Context, docs corpus.Corpus) (corpus.Corpus, error) {
	if docs != nil {
		return docs, nil
	}

	docs, err := d.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	metrics.CorpusDocuments.Set(float64(len(docs)))
	return docs, nil
}

// TokenSet scores text by token-set ratio. Pass nil docs to load the corpus.
// Scoring stops between documents once ctx is done.
func (d *Detector) TokenSet(ctx context.Context, text string, docs corpus.Corpus) (models.SimilarityResult, error) {
	docs, err := d.resolve(ctx, docs)
	if err != nil {
		return models.SimilarityResult{}, err
	}
	return scoreByTokenSet(ctx, text, docs)
}

// Fingerprint scores text by nearest Simhash. Pass nil docs to load the corpus.
func (d *Detector) Fingerprint(ctx context.Context, text string, docs corpus.Corpus) (models.SimilarityResult, error) {
	docs, err := d.resolve(ctx, docs)
	if err != nil {
		return models.SimilarityResult{}, err
	}
	result, _, err := nearestFingerprint(ctx, text, docs)
	return result, err
}

// Check runs both scorers over a single corpus snapshot. The check timeout
// covers loading and is re-checked between reference documents.
func (d *Detector) Check(ctx context.Context, text string, docs corpus.Corpus) (*models.CheckReport, error) {
	docs, err := d.resolve(ctx, docs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tokenSet, err := scoreByTokenSet(ctx, text, docs)
	if err != nil {
		return nil, fmt.Errorf("token-set scoring stopped: %w", err)
	}
	fingerprint, distance, err := nearestFingerprint(ctx, text, docs)
	if err != nil {
		return nil, fmt.Errorf("fingerprint scoring stopped: %w", err)
	}
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	best, provider := combine(tokenSet, fingerprint)

	log.Debug().
		Int("corpus", len(docs)).
		Int("tokenSet", tokenSet.Score).
		Int("fingerprint", fingerprint.Score).
		Int("distance", distance).
		Str("source", best.Source).
		Msg("Local overlap scored")

	return &models.CheckReport{
		Provider:    provider,
		TokenSet:    tokenSet,
		Fingerprint: fingerprint,
		Distance:    distance,
		Score:       best.Score,
		Source:      best.Source,
		Risk:        GetRiskLevel(best.Score),
		CorpusSize:  len(docs),
		Status:      models.StepCompleted,
	}, nil
}

// Checker runs checks against shared dependencies
type Checker struct {
	Detector *Detector
	Reports  ReportStore
	Status   StatusRecorder
	Timeout  time.Duration
}

// NewJob wraps a submission as a worker pool job
func (c *Checker) NewJob(submission *models.Submission) *CheckJob {
	return &CheckJob{
		Submission: submission,
		Detector:   c.Detector,
		Reports:    c.Reports,
		Status:     c.Status,
		Timeout:    c.Timeout,
	}
}

// ProcessSubmission runs a check synchronously
func (c *Checker) ProcessSubmission(ctx context.Context, submission *models.Submission) error {
	return c.NewJob(submission).Execute(ctx)
}

// CheckJob represents a queued check for the worker pool
type CheckJob struct {
	Submission *models.Submission
	Detector   *Detector
	Reports    ReportStore
	Status     StatusRecorder
	Timeout    time.Duration
	ResultChan chan<- *models.CheckReport
}

// Execute executes the check job
func (j *CheckJob) Execute(ctx context.Context) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	report, err := RunCheck(ctx, j.Submission, j.Detector, j.Reports, j.Status)

	if j.ResultChan != nil {
		select {
		case <-ctx.Done():
		case j.ResultChan <- report:
		}
	}

	return err
}

// RunCheck scores a submission, records its progress and persists the
// report. A failed check is persisted with StepFailed and the error returned.
func RunCheck(
	ctx context.Context,
	submission *models.Submission,
	detector *Detector,
	reports ReportStore,
	status StatusRecorder,
) (*models.CheckReport, error) {
	checkID := submission.CheckID

	updateStatus(ctx, status, checkID, models.StepLoadingCorpus)
	docs, err := detector.resolve(ctx, nil)
	if err != nil {
		log.Error().Err(err).Str("checkId", checkID).Msg("Failed to load corpus")
		return failCheck(ctx, submission, reports, status, err)
	}
	if docs == nil {
		docs = corpus.Corpus{}
	}

	updateStatus(ctx, status, checkID, models.StepScoring)
	report, err := detector.Check(ctx, submission.Text, docs)
	if err != nil {
		return failCheck(ctx, submission, reports, status, err)
	}

	report.CheckID = checkID
	report.SubmissionID = submission.SubmissionID

	if err := reports.SaveReport(ctx, report); err != nil {
		log.Error().Err(err).Str("checkId", checkID).Msg("Failed to store report")
		metrics.CheckCount.WithLabelValues(string(models.StepFailed)).Inc()
		updateStatus(ctx, status, checkID, models.StepFailed)
		return report, fmt.Errorf("failed to store report: %w", err)
	}

	updateStatus(ctx, status, checkID, models.StepCompleted)
	metrics.CheckCount.WithLabelValues(string(models.StepCompleted)).Inc()

	log.Info().
		Str("checkId", checkID).
		Str("submissionId", submission.SubmissionID).
		Int("score", report.Score).
		Str("source", report.Source).
		Str("risk", string(report.Risk)).
		Msg("Check completed successfully")

	return report, nil
}

func failCheck(
	ctx context.Context,
	submission *models.Submission,
	reports ReportStore,
	status StatusRecorder,
	cause error,
) (*models.CheckReport, error) {
	metrics.CheckCount.WithLabelValues(string(models.StepFailed)).Inc()

	report := &models.CheckReport{
		CheckID:      submission.CheckID,
		SubmissionID: submission.SubmissionID,
		Provider:     models.ProviderLocal,
		Status:       models.StepFailed,
		Error:        cause.Error(),
	}

	if err := reports.SaveReport(ctx, report); err != nil {
		log.Error().Err(err).Str("checkId", submission.CheckID).Msg("Failed to store failed report")
	}
	updateStatus(ctx, status, submission.CheckID, models.StepFailed)

	return report, cause
}

func updateStatus(ctx context.Context, status StatusRecorder, checkID string, step models.Step) {
	if status == nil {
		return
	}
	if err := status.UpdateStatus(ctx, checkID, step); err != nil {
		log.Warn().Err(err).Str("checkId", checkID).Str("step", string(step)).Msg("Failed to update status")
	}
}
