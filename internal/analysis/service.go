package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"xray-analyzer/internal/journal"
)

var (
	// ErrMissingCredentials means the vision service has no API key.
	ErrMissingCredentials = errors.New("vision service credentials are not configured")
	// ErrVisionUnavailable means every configured model failed.
	ErrVisionUnavailable = errors.New("vision service unavailable")
)

const (
	sourceFallback = "fallback"
	journalTimeout = 2 * time.Second
)

// VisionClient describes images through the external inference service.
type VisionClient interface {
	Describe(ctx context.Context, image []byte) (Vision, error)
	Enabled() bool
}

// Journal records finished analyses. A nil summary means it is disabled.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
	Summary(ctx context.Context) (*journal.Summary, error)
}

// DetailedReporter renders the detailed textual conclusion.
type DetailedReporter interface {
	Detailed(imagePath string, findings []string) string
}

type AnalyzeRequest struct {
	Image []byte
	// FileName is the name the client uploaded the image under.
	FileName string
	Patient  PatientData
}

type Service interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*XrayAnalysis, error)
	SimilarCases(caseID int, diagnosis string) []SimilarCase
	DetailedAnalysis(imagePath string, findings []string) string
	JournalSummary(ctx context.Context) (*journal.Summary, error)
	VisionEnabled() bool
}

type Options struct {
	// RequireCredentials fails the analysis instead of using the fallback
	// description when the vision service has no API key.
	RequireCredentials bool
	// VisionTimeout bounds the whole vision call, retries and backup model
	// included. Running out of it falls back like any other vision failure.
	VisionTimeout time.Duration
	Now           func() time.Time
}

type service struct {
	vision             VisionClient
	cases              *CaseRepository
	reporter           DetailedReporter
	journal            Journal
	log                *logrus.Logger
	requireCredentials bool
	visionTimeout      time.Duration
	now                func() time.Time
}

func NewService(vision VisionClient, cases *CaseRepository, reporter DetailedReporter, j Journal, log *logrus.Logger, opts Options) Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if j == nil {
		j = journal.Disabled{}
	}
	return &service{
		vision:             vision,
		cases:              cases,
		reporter:           reporter,
		journal:            j,
		log:                log,
		requireCredentials: opts.RequireCredentials,
		visionTimeout:      opts.VisionTimeout,
		now:                now,
	}
}

func (s *service) Analyze(ctx context.Context, req AnalyzeRequest) (*XrayAnalysis, error) {
	start := s.now()
	digest := DigestOf(req.Image)
	log := s.log.WithFields(logrus.Fields{"digest": digest.Short(), "file": req.FileName})

	vision, source, err := s.describe(ctx, req.Image, digest, log)
	if err != nil {
		return nil, err
	}

	result := ReadImage(vision, digest, req.FileName)
	rep := Synthesize(result, req.Patient)

	analysis := &XrayAnalysis{
		Diagnosis:       rep.Diagnosis,
		Recommendations: rep.Recommendations,
		SimilarCases:    s.cases.Lookup(rep.Category),
		Confidence:      result.Confidence,
		AnalysisDate:    s.now(),
	}

	elapsed := s.now().Sub(start)
	log.WithFields(logrus.Fields{
		"source":    source,
		"region":    result.AnatomicalRegion,
		"pathology": result.PathologyDetected,
		"category":  rep.Category,
		"elapsed":   elapsed,
	}).Info("Analysis completed")

	s.record(ctx, &journal.Entry{
		ImageName:      req.FileName,
		Region:         string(result.AnatomicalRegion),
		Pathology:      result.PathologyDetected,
		Category:       string(rep.Category),
		Confidence:     result.Confidence,
		Source:         source,
		ProcessingTime: elapsed,
		CreatedAt:      analysis.AnalysisDate,
	}, log)

	return analysis, nil
}

// describe asks the vision service and falls back to the digest-derived
// description on failure. Missing credentials fail only under the strict
// policy; a cancelled request is never masked by the fallback, but running
// out of the vision budget is.
func (s *service) describe(ctx context.Context, image []byte, digest ImageDigest, log *logrus.Entry) (Vision, string, error) {
	vctx := ctx
	if s.visionTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.visionTimeout)
		defer cancel()
	}

	v, err := s.vision.Describe(vctx, image)
	if err == nil {
		return v, "vision:" + v.Model, nil
	}

	if errors.Is(err, ErrMissingCredentials) && s.requireCredentials {
		return Vision{}, "", fmt.Errorf("describe image: %w", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Vision{}, "", fmt.Errorf("describe image: %w", ctxErr)
	}

	log.WithError(err).Warn("Vision service failed, using fallback description")
	return FallbackVision(digest), sourceFallback, nil
}

func (s *service) record(ctx context.Context, e *journal.Entry, log *logrus.Entry) {
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := s.journal.Record(jctx, e); err != nil {
		log.WithError(err).Warn("Failed to journal analysis")
	}
}

func (s *service) SimilarCases(caseID int, diagnosis string) []SimilarCase {
	category := CategoryForText(fmt.Sprintf("case_%d %s", caseID, diagnosis))
	s.log.WithFields(logrus.Fields{"case_id": caseID, "category": category}).Debug("Similar cases requested")
	return s.cases.Lookup(category)
}

func (s *service) DetailedAnalysis(imagePath string, findings []string) string {
	s.log.WithFields(logrus.Fields{"image": imagePath, "findings": len(findings)}).Debug("Detailed analysis requested")
	return s.reporter.Detailed(imagePath, findings)
}

func (s *service) JournalSummary(ctx context.Context) (*journal.Summary, error) {
	return s.journal.Summary(ctx)
}

func (s *service) VisionEnabled() bool {
	return s.vision.Enabled()
}
