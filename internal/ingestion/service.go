// Package ingestion routes chat events through the clip pipeline:
// classify, acquire, normalize, dispatch, clean up and acknowledge.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/backend"
	"github.com/your-org/clipflow/internal/clip"
	"github.com/your-org/clipflow/pkg/metrics"
	"github.com/your-org/clipflow/pkg/storage/objectstore"
	"github.com/your-org/clipflow/pkg/tracing"
)

type Acquirer interface {
	Acquire(ctx context.Context, src clip.Source, ev clip.Event) (*clip.Clip, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, c *clip.Clip) error
}

type Uploader interface {
	Upload(ctx context.Context, token string, c *clip.Clip) error
}

type Credentials interface {
	Token() (backend.Token, bool)
}

// Acknowledger places and removes reactions on the originating message.
type Acknowledger interface {
	React(ctx context.Context, ev clip.Event, r clip.Reaction) error
	Unreact(ctx context.Context, ev clip.Event, r clip.Reaction) error
}

type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

type Archive interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, metadata map[string]string) error
}

// State is the terminal state of one event.
type State string

const (
	StateIgnored   State = "ignored"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Stage names a pipeline step, used in logs, metrics and outcome events.
type Stage string

const (
	StageAcquire   Stage = "acquire"
	StageNormalize Stage = "normalize"
	StageDispatch  Stage = "dispatch"
)

// Outcome summarises how an event left the pipeline.
type Outcome struct {
	State State
	Stage Stage
	Err   error
}

// Service is the event router. Events are processed one at a time in
// arrival order.
type Service struct {
	classifier    *Classifier
	acquirer      Acquirer
	normalizer    Normalizer
	uploader      Uploader
	credentials   Credentials
	acks          Acknowledger
	publisher     Publisher
	archive       Archive
	logger        *zap.Logger
	metrics       *metrics.Metrics
	uploadTimeout time.Duration
	now           func() time.Time

	events chan job
}

// job is an accepted event waiting in the lane.
type job struct {
	ev  clip.Event
	src clip.Source
}

// Params wires a Service. Normalizer, Publisher and Archive are optional.
type Params struct {
	Classifier    *Classifier
	Acquirer      Acquirer
	Normalizer    Normalizer
	Uploader      Uploader
	Credentials   Credentials
	Acks          Acknowledger
	Publisher     Publisher
	Archive       Archive
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	UploadTimeout time.Duration
	QueueSize     int
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		classifier:    p.Classifier,
		acquirer:      p.Acquirer,
		normalizer:    p.Normalizer,
		uploader:      p.Uploader,
		credentials:   p.Credentials,
		acks:          p.Acks,
		publisher:     p.Publisher,
		archive:       p.Archive,
		logger:        logger,
		metrics:       p.Metrics,
		uploadTimeout: p.UploadTimeout,
		now:           time.Now,
		events:        make(chan job, max(p.QueueSize, 0)),
	}
}

// Submit classifies ev and hands accepted events to the processing lane,
// blocking while the lane is full. Ignored events return at once and never
// occupy the lane.
func (s *Service) Submit(ctx context.Context, ev clip.Event) error {
	src, ok := s.classify(ev)
	if !ok {
		return nil
	}
	select {
	case s.events <- job{ev: ev, src: src}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth reports how many events are waiting behind the current one.
func (s *Service) QueueDepth() int {
	return len(s.events)
}

// Run processes submitted events until ctx is done. An event already in
// flight is finished before Run returns; stage timeouts bound how long that
// takes.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("event lane started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("event lane stopped")
			return ctx.Err()
		case j := <-s.events:
			s.handle(context.WithoutCancel(ctx), j.ev, j.src)
		}
	}
}

// Process takes one event through the pipeline and returns its outcome.
// Failures never escape: they are logged, acknowledged and reported.
func (s *Service) Process(ctx context.Context, ev clip.Event) Outcome {
	src, ok := s.classify(ev)
	if !ok {
		return Outcome{State: StateIgnored}
	}
	return s.handle(ctx, ev, src)
}

func (s *Service) classify(ev clip.Event) (clip.Source, bool) {
	src, ok := s.classifier.Classify(ev)
	if !ok {
		s.logger.Debug("event ignored",
			zap.String("message_id", ev.ID),
			zap.String("channel_id", ev.ChannelID),
		)
		s.metrics.Event(string(StateIgnored))
	}
	return src, ok
}

func (s *Service) handle(ctx context.Context, ev clip.Event, src clip.Source) Outcome {
	corrID := uuid.NewString()
	log := s.logger.With(
		zap.String("correlation_id", corrID),
		zap.String("message_id", ev.ID),
		zap.String("channel_id", ev.ChannelID),
		zap.Stringer("source_kind", src.Kind),
		zap.String("source", src.ID()),
	)
	log.Info("clip event accepted", zap.String("submitter", ev.AuthorName))

	ctx, span := tracing.Start(ctx, "ingestion.process",
		attribute.String("clip.correlation_id", corrID),
		attribute.String("clip.source_kind", src.Kind.String()),
	)

	s.react(ctx, log, ev, clip.ReactionPending)

	c, stage, archiveKey, err := s.pipeline(ctx, log, corrID, src, ev)
	if c != nil {
		s.cleanup(log, c.Path)
	}
	tracing.End(span, err)

	s.unreact(ctx, log, ev, clip.ReactionPending)

	out := Outcome{State: StateSucceeded}
	if err != nil {
		out = Outcome{State: StateFailed, Stage: stage, Err: err}
		reason, _ := clip.ReasonOf(err)
		log.Error("clip ingestion failed",
			zap.String("stage", string(stage)),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		s.metrics.StageFailure(string(stage), string(reason))
		s.react(ctx, log, ev, clip.ReactionFailure)
	} else {
		log.Info("clip ingested",
			zap.String("streamer", c.Streamer),
			zap.String("title", c.Title),
		)
		s.react(ctx, log, ev, clip.ReactionSuccess)
	}
	s.metrics.Event(string(out.State))
	s.publish(ctx, log, corrID, ev, src, c, out, archiveKey)
	return out
}

// pipeline runs acquire, normalize and dispatch. The returned clip is
// non-nil whenever a file was acquired, so the caller can clean up.
func (s *Service) pipeline(ctx context.Context, log *zap.Logger, id string, src clip.Source, ev clip.Event) (*clip.Clip, Stage, string, error) {
	var c *clip.Clip
	err := s.stage(ctx, StageAcquire, func(ctx context.Context) error {
		var err error
		c, err = s.acquirer.Acquire(ctx, src, ev)
		return err
	})
	if err != nil {
		return nil, StageAcquire, "", err
	}
	log.Debug("clip acquired", zap.String("path", c.Path))

	if s.normalizer != nil {
		if err := s.stage(ctx, StageNormalize, func(ctx context.Context) error {
			return s.normalizer.Normalize(ctx, c)
		}); err != nil {
			return c, StageNormalize, "", err
		}
	}

	// The token is read once per upload; a concurrent refresh only affects
	// later uploads.
	token, ok := s.credentials.Token()
	if !ok {
		return c, StageDispatch, "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Err: errors.New("no backend token")}
	}
	if err := s.stage(ctx, StageDispatch, func(ctx context.Context) error {
		if s.uploadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
			defer cancel()
		}
		return s.uploader.Upload(ctx, token.Value, c)
	}); err != nil {
		return c, StageDispatch, "", err
	}

	return c, "", s.archiveClip(ctx, log, id, c), nil
}

func (s *Service) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := tracing.Start(ctx, "ingestion."+string(stage))
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStage(string(stage), time.Since(start))
	tracing.End(span, err)
	return err
}

// archiveClip mirrors a dispatched clip into the object store. Failures are
// logged only: the clip already reached the backend.
func (s *Service) archiveClip(ctx context.Context, log *zap.Logger, id string, c *clip.Clip) string {
	if s.archive == nil {
		return ""
	}
	f, err := os.Open(c.Path)
	if err != nil {
		log.Warn("archive clip: open", zap.Error(err))
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		log.Warn("archive clip: stat", zap.Error(err))
		return ""
	}

	key := objectstore.ArchiveKey(s.now(), id, c.Path)
	err = s.archive.Put(ctx, key, f, info.Size(), map[string]string{
		"streamer":  c.Streamer,
		"title":     c.Title,
		"link":      c.Link,
		"submitter": c.Submitter,
	})
	if err != nil {
		log.Warn("archive clip", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

// cleanup removes the clip file. A file that is already gone is fine.
func (s *Service) cleanup(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error("remove clip file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) react(ctx context.Context, log *zap.Logger, ev clip.Event, r clip.Reaction) {
	if s.acks == nil {
		return
	}
	if err := s.acks.React(ctx, ev, r); err != nil {
		log.Warn("add reaction", zap.String("reaction", string(r)), zap.Error(err))
	}
}

func (s *Service) unreact(ctx context.Context, log *zap.Logger, ev clip.Event, r clip.Reaction) {
	if s.acks == nil {
		return
	}
	if err := s.acks.Unreact(ctx, ev, r); err != nil {
		log.Warn("remove reaction", zap.String("reaction", string(r)), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, id string, ev clip.Event, src clip.Source, c *clip.Clip, out Outcome, archiveKey string) {
	if s.publisher == nil {
		return
	}

	event := ClipEvent{
		ID:         id,
		MessageID:  ev.ID,
		ChannelID:  ev.ChannelID,
		Status:     "ingested",
		SourceKind: src.Kind.String(),
		Source:     src.ID(),
		Submitter:  ev.AuthorName,
		ArchiveKey: archiveKey,
		CreatedAt:  s.now().UTC(),
	}
	if c != nil {
		event.Streamer = c.Streamer
		event.Title = c.Title
		event.Link = c.Link
	}
	eventType := eventTypeIngested
	if out.State == StateFailed {
		eventType = eventTypeFailed
		event.Status = "failed"
		event.Stage = string(out.Stage)
		reason, _ := clip.ReasonOf(out.Err)
		event.Reason = string(reason)
		event.Error = out.Err.Error()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Warn("marshal clip event", zap.Error(err))
		return
	}
	headers := map[string]string{
		"clip_id":    id,
		"event_type": eventType,
	}
	if err := s.publisher.Publish(ctx, []byte(id), payload, headers); err != nil {
		log.Warn("publish clip event", zap.Error(fmt.Errorf("%s: %w", eventType, err)))
	}
}
