// Package worker closes finished trips and archives their chat transcripts.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
	"github.com/yatri-app/backend/pkg/queue"
	"github.com/yatri-app/backend/pkg/storage"
)

// DefaultSweepBatch bounds how many expired trips one sweep enqueues.
const DefaultSweepBatch = 200

// JobQueue is satisfied by *queue.Queue and *queue.Memory.
type JobQueue interface {
	EnqueueTripArchive(ctx context.Context, payload queue.TripArchivePayload) error
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// TranscriptUploader stores a serialized transcript under key.
type TranscriptUploader interface {
	UploadTranscript(ctx context.Context, key string, body []byte) error
}

// Transcript is the archived form of a trip's chat.
type Transcript struct {
	TripID      uuid.UUID           `json:"trip_id"`
	Destination string              `json:"destination"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	ArchivedAt  time.Time           `json:"archived_at"`
	Messages    []TranscriptMessage `json:"messages"`
}

// TranscriptMessage is one chat line with its sender resolved.
type TranscriptMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Archiver finds trips past their end date, closes them and exports the chat.
type Archiver struct {
	store    store.Store
	queue    JobQueue
	uploader TranscriptUploader
	logger   *zap.Logger
	now      func() time.Time
	batch    int
	backoff  time.Duration
}

// NewArchiver creates an archiver. uploader may be nil, in which case trips are
// closed without a transcript.
func NewArchiver(st store.Store, q JobQueue, uploader TranscriptUploader, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:    st,
		queue:    q,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		batch:    DefaultSweepBatch,
		backoff:  queue.RetryBackoff,
	}
}

// Sweep enqueues an archive job for every open trip that ended before today (UTC).
func (a *Archiver) Sweep(ctx context.Context) (int, error) {
	now := a.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trips, err := a.store.Trips().ListExpiredOpenTrips(ctx, today, a.batch)
	if err != nil {
		return 0, fmt.Errorf("list expired trips: %w", err)
	}
	enqueued := 0
	for _, t := range trips {
		if err := a.queue.EnqueueTripArchive(ctx, queue.TripArchivePayload{TripID: t.ID}); err != nil {
			return enqueued, fmt.Errorf("enqueue trip %s: %w", t.ID, err)
		}
		enqueued++
	}
	if enqueued > 0 {
		a.logger.Info("expired trips enqueued for archive", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

// Process executes one trip archive job: close the trip, then export its chat.
// A closed trip without a transcript is exported again, so failed uploads retry.
func (a *Archiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTripArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TripArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	trip, err := a.store.Trips().GetTrip(ctx, payload.TripID)
	if err != nil {
		return fmt.Errorf("get trip %s: %w", payload.TripID, err)
	}
	log := a.logger.With(zap.String("trip_id", trip.ID.String()))

	if trip.Status == models.TripStatusOpen {
		// closed trips reject new messages, so the export below is complete
		if err := a.store.Trips().CloseTrip(ctx, trip.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("close trip: %w", err)
		}
		log.Info("trip closed")
	} else if trip.TranscriptKey != "" {
		log.Info("trip already archived")
		return nil
	}

	if a.uploader == nil {
		log.Warn("transcript storage not configured, closing without archive")
		return nil
	}
	body, err := a.transcript(ctx, trip)
	if err != nil {
		return err
	}
	key := storage.TranscriptKey(trip.ID)
	if err := a.uploader.UploadTranscript(ctx, key, body); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}
	if err := a.store.Trips().SetTranscriptKey(ctx, trip.ID, key); err != nil {
		return fmt.Errorf("record transcript key: %w", err)
	}
	log.Info("trip archived", zap.String("transcript_key", key))
	return nil
}

func (a *Archiver) transcript(ctx context.Context, trip *models.Trip) ([]byte, error) {
	msgs, err := a.store.Messages().ListMessages(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	seen := make(map[uuid.UUID]struct{})
	var senders []uuid.UUID
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; !ok {
			seen[m.UserID] = struct{}{}
			senders = append(senders, m.UserID)
		}
	}
	profiles := map[uuid.UUID]models.Profile{}
	if len(senders) > 0 {
		if profiles, err = a.store.Users().GetProfiles(ctx, senders); err != nil {
			return nil, fmt.Errorf("get profiles: %w", err)
		}
	}

	out := Transcript{
		TripID:      trip.ID,
		Destination: trip.Destination,
		StartDate:   trip.StartDate.Format(models.DateLayout),
		EndDate:     trip.EndDate.Format(models.DateLayout),
		ArchivedAt:  a.now().UTC(),
		Messages:    make([]TranscriptMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, TranscriptMessage{
			ID:         m.ID,
			SenderID:   m.UserID,
			SenderName: profiles[m.UserID].DisplayName,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// Run starts the worker loop: dequeue, process, retry on error.
func (a *Archiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := a.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			a.logger.Warn("dequeue error", zap.Error(err))
			a.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		a.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := a.Process(ctx, job); err != nil {
			a.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := a.queue.Retry(ctx, job); reErr != nil {
				a.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			a.sleep(ctx)
		}
	}
}

// RunSweeper sweeps immediately and then every interval until ctx is done.
func (a *Archiver) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.Sweep(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("archive sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Archiver) sleep(ctx context.Context) {
	t := time.NewTimer(a.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
