// Package moderation runs one content moderation session end to end: stage
// the video, open a notification channel, run the remote job, classify its
// findings, and tear every ephemeral resource down again.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/channel"
	"github.com/your-org/modflow/internal/classify"
	"github.com/your-org/modflow/internal/job"
	"github.com/your-org/modflow/pkg/storage/objectstore"
)

// ChannelManager provisions and tears down notification channels.
type ChannelManager interface {
	Open(ctx context.Context, name string) (*channel.Channel, error)
	Close(ctx context.Context, ch *channel.Channel) error
}

// JobRunner drives one remote moderation job.
type JobRunner interface {
	Start(ctx context.Context, media job.MediaRef, addr channel.Address, minConfidence float32) (string, error)
	Await(ctx context.Context, queueURL, jobID string, pollInterval time.Duration) (job.Status, error)
	Fetch(ctx context.Context, jobID string, status job.Status) ([]classify.Detection, error)
}

// Publisher emits moderation result events.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// CleanupError reports that teardown of a session's ephemeral resources
// failed after the session itself succeeded.
type CleanupError struct {
	SessionID string
	Err       error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("session %s cleanup: %v", e.SessionID, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// Defaults carries the session knobs the service falls back to when a call
// does not override them.
type Defaults struct {
	MinConfidence float32
	PollInterval  time.Duration
	AwaitTimeout  time.Duration
	ChannelPrefix string
	StagingPrefix string
}

// Service wires together staging, the notification channel, the remote job,
// classification, and the result event stream.
type Service struct {
	store    objectstore.Client
	channels ChannelManager
	jobs     JobRunner
	producer Publisher
	taxonomy classify.Taxonomy
	defaults Defaults
	logger   *zap.Logger
}

type Params struct {
	Store    objectstore.Client
	Channels ChannelManager
	Jobs     JobRunner
	Producer Publisher
	Taxonomy classify.Taxonomy
	Defaults Defaults
	Logger   *zap.Logger
}

// NewService constructs a moderation Service.
func NewService(p Params) *Service {
	if p.Taxonomy.Categories == nil {
		p.Taxonomy = classify.Default
	}
	return &Service{
		store:    p.Store,
		channels: p.Channels,
		jobs:     p.Jobs,
		producer: p.Producer,
		taxonomy: p.Taxonomy,
		defaults: p.Defaults,
		logger:   p.Logger,
	}
}

// SessionOptions captures per-session overrides. Zero values fall back to the
// service defaults.
type SessionOptions struct {
	MediaName     string
	ContentType   string
	MinConfidence float32
	PollInterval  time.Duration
	AwaitTimeout  time.Duration
}

// SessionResult is what one session hands back to the caller.
type SessionResult struct {
	SessionID  string
	JobID      string
	Status     job.Status
	Categories classify.Tally
	Verdict    classify.Verdict
	StartedAt  time.Time
	FinishedAt time.Time
}

// Moderate runs one session over the given media stream. The notification
// channel and staging bucket are exclusively owned by this call and are torn
// down on every exit path; teardown failures never mask an earlier error, and
// when teardown is the only failure it surfaces as a CleanupError.
func (s *Service) Moderate(ctx context.Context, reader io.Reader, size int64, opts SessionOptions) (res *SessionResult, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid media size: %d", size)
	}
	opts = s.withDefaults(opts)

	sessionID := uuid.NewString()
	bucket := fmt.Sprintf("%s-%s", s.defaults.StagingPrefix, sessionID)
	channelName := fmt.Sprintf("%s-%s", s.defaults.ChannelPrefix, sessionID)
	startedAt := time.Now().UTC()

	log := s.logger.With(zap.String("session_id", sessionID))
	log.Info("moderation session starting",
		zap.String("media", opts.MediaName),
		zap.Float32("min_confidence", opts.MinConfidence))

	var (
		staged bool
		ch     *channel.Channel
	)
	defer func() {
		cctx := context.WithoutCancel(ctx)
		var errs []error
		if ch != nil {
			if cerr := s.channels.Close(cctx, ch); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		if staged {
			if cerr := s.store.EmptyBucket(cctx, bucket); cerr != nil {
				errs = append(errs, cerr)
			}
			if cerr := s.store.RemoveBucket(cctx, bucket); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		if len(errs) == 0 {
			return
		}
		joined := errors.Join(errs...)
		if err != nil {
			// The upstream failure is the one the caller needs to see.
			log.Error("teardown failed after session error", zap.Error(joined))
			return
		}
		res = nil
		err = &CleanupError{SessionID: sessionID, Err: joined}
	}()

	if err := s.store.CreateBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("create staging bucket: %w", err)
	}
	staged = true

	key := opts.MediaName
	if key == "" {
		key = sessionID + ".bin"
	}
	if err := s.store.Upload(ctx, bucket, key, reader, size, opts.ContentType); err != nil {
		return nil, fmt.Errorf("stage media: %w", err)
	}
	media := job.MediaRef{Bucket: bucket, Key: key}

	ch, err = s.channels.Open(ctx, channelName)
	if err != nil {
		return nil, err
	}

	jobID, err := s.jobs.Start(ctx, media, ch.Address(), opts.MinConfidence)
	if err != nil {
		return nil, err
	}

	awaitCtx := ctx
	if opts.AwaitTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, opts.AwaitTimeout)
		defer cancel()
	}
	status, err := s.jobs.Await(awaitCtx, ch.QueueURL, jobID, opts.PollInterval)
	if err != nil {
		return nil, err
	}

	detections, err := s.jobs.Fetch(ctx, jobID, status)
	if err != nil {
		return nil, err
	}

	tally := s.taxonomy.Classify(detections)
	result := &SessionResult{
		SessionID:  sessionID,
		JobID:      jobID,
		Status:     status,
		Categories: tally,
		Verdict:    tally.Verdict(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	log.Info("moderation session finished",
		zap.String("job_id", jobID),
		zap.String("status", string(status)),
		zap.Int("detections", len(detections)),
		zap.String("verdict", string(result.Verdict)))

	s.publishResult(ctx, result, opts.MediaName, log)
	return result, nil
}

// ModerateFile stages a local file and runs a session over it.
func (s *Service) ModerateFile(ctx context.Context, mediaPath string, opts SessionOptions) (*SessionResult, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	if opts.MediaName == "" {
		opts.MediaName = filepath.Base(mediaPath)
	}
	return s.Moderate(ctx, f, info.Size(), opts)
}

func (s *Service) withDefaults(opts SessionOptions) SessionOptions {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = s.defaults.MinConfidence
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = s.defaults.PollInterval
	}
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = s.defaults.AwaitTimeout
	}
	return opts
}

func (s *Service) publishResult(ctx context.Context, result *SessionResult, mediaName string, log *zap.Logger) {
	if s.producer == nil {
		return
	}
	event := ModerationEvent{
		SessionID:       result.SessionID,
		MediaName:       mediaName,
		JobID:           result.JobID,
		TaxonomyVersion: classify.TaxonomyVersion,
		Categories:      result.Categories,
		Verdict:         result.Verdict,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("marshal moderation event", zap.Error(err))
		return
	}
	headers := map[string]string{
		"session_id": result.SessionID,
		"event_type": "moderation.completed",
	}
	if err := s.producer.Publish(context.WithoutCancel(ctx), []byte(result.SessionID), payload, headers); err != nil {
		// The verdict already exists; event delivery is advisory.
		log.Error("publish moderation event", zap.Error(err))
	}
}
