package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/metrics"
)

type VideoBillingMode string

const (
	VideoBillingUngated VideoBillingMode = "ungated"
	VideoBillingGated   VideoBillingMode = "gated"

	DefaultVideoMaxPolls       = 80
	DefaultVideoFirstPollDelay = 3 * time.Second
	DefaultVideoPollInterval   = 15 * time.Second

	videoTimeoutMessage = "Video generation timed out"

	videoStatusTimeoutMessage = "Request timed out. Please try checking status again."
)

// VideoConfig controls video billing and polling.
type VideoConfig struct {
	BillingMode    VideoBillingMode
	MaxPolls       int
	FirstPollDelay time.Duration
	PollInterval   time.Duration
}

// VideoConfigFromEnv reads VIDEO_BILLING_MODE and VIDEO_MAX_POLLS.
func VideoConfigFromEnv() VideoConfig {
	mode := VideoBillingMode(strings.ToLower(env.GetEnv("VIDEO_BILLING_MODE", string(VideoBillingUngated))))
	if mode != VideoBillingGated {
		mode = VideoBillingUngated
	}
	return VideoConfig{
		BillingMode:    mode,
		MaxPolls:       env.GetEnvInt("VIDEO_MAX_POLLS", DefaultVideoMaxPolls),
		FirstPollDelay: DefaultVideoFirstPollDelay,
		PollInterval:   DefaultVideoPollInterval,
	}
}

// JobScheduler schedules background jobs.
type JobScheduler interface {
	EnqueueJobAfter(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}, delay time.Duration) (*jobqueue.Job, error)
}

// VideoHistory stores finished videos.
type VideoHistory interface {
	CreateVideo(video *models.VideoGeneration) error
	GetVideoByRequestID(requestID string) (*models.VideoGeneration, error)
}

type VideoSubmitRequest struct {
	ImageURL             string `json:"imageUrl"`
	VideoURL             string `json:"videoUrl"`
	Prompt               string `json:"prompt"`
	CharacterOrientation string `json:"characterOrientation"`
}

type SaveVideoRequest struct {
	Prompt               string `json:"prompt"`
	CharacterOrientation string `json:"characterOrientation"`
	SourceImageURL       string `json:"sourceImageUrl"`
	SourceVideoURL       string `json:"sourceVideoUrl"`
	ResultURL            string `json:"resultUrl"`
	FileName             string `json:"fileName"`
}

// VideoService submits motion videos to the workflow and follows them to
// completion through video_poll jobs.
type VideoService struct {
	ledger    CreditLedger
	workflow  VideoWorkflow
	history   VideoHistory
	statuses  VideoStatusStore
	scheduler JobScheduler
	cfg       VideoConfig
	now       func() time.Time
}

func NewVideoService(
	ledger CreditLedger,
	workflow VideoWorkflow,
	history VideoHistory,
	statuses VideoStatusStore,
	scheduler JobScheduler,
	cfg VideoConfig,
) *VideoService {
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultVideoMaxPolls
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultVideoPollInterval
	}
	if cfg.FirstPollDelay < 0 {
		cfg.FirstPollDelay = DefaultVideoFirstPollDelay
	}
	if cfg.BillingMode == "" {
		cfg.BillingMode = VideoBillingUngated
	}
	return &VideoService{
		ledger:    ledger,
		workflow:  workflow,
		history:   history,
		statuses:  statuses,
		scheduler: scheduler,
		cfg:       cfg,
		now:       time.Now,
	}
}

func normalizeOrientation(o string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(o)) {
	case "", models.ORIENTATION_IMAGE:
		return models.ORIENTATION_IMAGE, true
	case models.ORIENTATION_VIDEO:
		return models.ORIENTATION_VIDEO, true
	}
	return "", false
}

// Submit starts a video job for userID and schedules its first poll.
func (s *VideoService) Submit(ctx context.Context, userID uint, req VideoSubmitRequest) (*VideoStatus, error) {
	if s.cfg.BillingMode == VideoBillingGated {
		aff, err := s.ledger.CheckAffordability(ctx, userID, entitlements.ActionVideo)
		if err != nil {
			return nil, err
		}
		if !aff.Affordable {
			metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "insufficient_credits")
			return nil, &InsufficientCreditsError{Action: entitlements.ActionVideo, Required: aff.Cost, Available: aff.Balance}
		}
	}

	imageURL := strings.TrimSpace(req.ImageURL)
	videoURL := strings.TrimSpace(req.VideoURL)
	if imageURL == "" || videoURL == "" {
		return nil, validationError("Image and video URLs are required")
	}
	orientation, ok := normalizeOrientation(req.CharacterOrientation)
	if !ok {
		return nil, validationError("Character orientation must be image or video")
	}
	prompt := strings.TrimSpace(req.Prompt)

	requestID, err := s.workflow.Submit(ctx, VideoRequest{
		ImageURL:             imageURL,
		VideoURL:             videoURL,
		Prompt:               prompt,
		CharacterOrientation: orientation,
	})
	if err != nil {
		metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "provider_error")
		return nil, err
	}

	st := &VideoStatus{
		RequestID: requestID,
		UserID:    userID,
		Status:    VideoStatusQueued,
		Message:   "Video generation started...",
		UpdatedAt: s.now(),
	}
	if err := s.statuses.Put(ctx, st); err != nil {
		log.Warnf("[Gateway] Failed to cache status of video %s: %v", requestID, err)
	}

	payload := jobqueue.VideoPollJobPayload{
		RequestID:            requestID,
		UserID:               userID,
		Attempt:              1,
		Prompt:               prompt,
		CharacterOrientation: orientation,
		ImageURL:             imageURL,
		VideoURL:             videoURL,
	}
	if _, err := s.scheduler.EnqueueJobAfter(ctx, jobqueue.JobTypeVideoPoll, payload.ToMap(), s.cfg.FirstPollDelay); err != nil {
		return nil, fmt.Errorf("schedule video poll: %w", err)
	}
	log.Infof("[Gateway] Video %s submitted for user %d", requestID, userID)
	return st, nil
}

// Status returns the cached status of requestID when it belongs to userID.
func (s *VideoService) Status(ctx context.Context, userID uint, requestID string) (*VideoStatus, error) {
	st, err := s.statuses.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, ErrVideoStatusNotFound
	}
	return st, nil
}

// HandlePollJob is the video_poll job handler. It checks the workflow once
// and either finishes the request or schedules the next poll.
func (s *VideoService) HandlePollJob(ctx context.Context, job *jobqueue.Job) error {
	p, err := jobqueue.VideoPollJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid video poll payload: %w", err)
	}
	if p.RequestID == "" {
		return errors.New("video poll payload without request id")
	}

	st := &VideoStatus{RequestID: p.RequestID, UserID: p.UserID, Polls: p.Attempt}
	ws, err := s.workflow.Status(ctx, p.RequestID)
	if err != nil {
		// A failed status check ends the request; nothing is stored or debited.
		log.Warnf("[Gateway] Video %s status check %d failed: %v", p.RequestID, p.Attempt, err)
		st.Status = VideoStatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			st.Message = videoStatusTimeoutMessage
			metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "timeout")
		} else {
			st.Message = err.Error()
			metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "provider_error")
		}
		metrics.Get().ObservePollAttempts("video", p.Attempt)
		return s.finish(ctx, st)
	}

	st.Status = ws.Status
	st.QueuePosition = ws.QueuePosition
	st.Message = ws.Message

	switch {
	case ws.Status == VideoStatusCompleted && ws.Video != nil && ws.Video.URL != "":
		return s.complete(ctx, p, ws.Video, st)
	case ws.Status == VideoStatusFailed:
		if st.Message == "" {
			st.Message = "Video generation failed"
		}
		metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "provider_error")
		metrics.Get().ObservePollAttempts("video", p.Attempt)
		return s.finish(ctx, st)
	case ws.Status == VideoStatusInProgress:
		st.QueuePosition = nil
	}
	return s.continuePolling(ctx, p, st)
}

func (s *VideoService) continuePolling(ctx context.Context, p *jobqueue.VideoPollJobPayload, st *VideoStatus) error {
	if p.Attempt >= s.cfg.MaxPolls {
		st.Status = VideoStatusFailed
		st.QueuePosition = nil
		st.Message = videoTimeoutMessage
		metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "timeout")
		metrics.Get().ObservePollAttempts("video", p.Attempt)
		log.Warnf("[Gateway] Video %s gave up after %d polls", p.RequestID, p.Attempt)
		return s.finish(ctx, st)
	}

	if err := s.put(ctx, st); err != nil {
		log.Warnf("[Gateway] Failed to cache status of video %s: %v", p.RequestID, err)
	}

	next := *p
	next.Attempt++
	if _, err := s.scheduler.EnqueueJobAfter(ctx, jobqueue.JobTypeVideoPoll, next.ToMap(), s.cfg.PollInterval); err != nil {
		return fmt.Errorf("schedule video poll: %w", err)
	}
	return nil
}

func (s *VideoService) complete(ctx context.Context, p *jobqueue.VideoPollJobPayload, asset *VideoAsset, st *VideoStatus) error {
	st.QueuePosition = nil
	st.Video = asset
	metrics.Get().ObservePollAttempts("video", p.Attempt)

	existing, err := s.history.GetVideoByRequestID(p.RequestID)
	if err == nil && existing != nil {
		// A retried job already stored this video.
		st.GenerationID = existing.ID
		return s.finish(ctx, st)
	}

	video := &models.VideoGeneration{
		UserID:               p.UserID,
		RequestID:            p.RequestID,
		CharacterOrientation: p.CharacterOrientation,
		SourceImageURL:       p.ImageURL,
		SourceVideoURL:       p.VideoURL,
		ResultURL:            asset.URL,
	}
	if p.Prompt != "" {
		prompt := p.Prompt
		video.Prompt = &prompt
	}
	if asset.FileName != "" {
		name := asset.FileName
		video.FileName = &name
	}
	if video.CharacterOrientation == "" {
		video.CharacterOrientation = models.ORIENTATION_IMAGE
	}
	if err := s.history.CreateVideo(video); err != nil {
		return fmt.Errorf("save video %s: %w", p.RequestID, err)
	}
	st.GenerationID = video.ID

	if s.cfg.BillingMode == VideoBillingGated {
		if _, err := s.ledger.Debit(ctx, p.UserID, entitlements.ActionVideo); err != nil {
			metrics.Get().RecordDebitAfterSuccessFailure(string(entitlements.ActionVideo))
			log.Errorf("[Gateway] Debit of video for user %d failed after completion of %s: %v", p.UserID, p.RequestID, err)
		}
	}
	metrics.Get().RecordGeneration(string(entitlements.ActionVideo), "success")
	log.Infof("[Gateway] Video %s completed for user %d", p.RequestID, p.UserID)
	return s.finish(ctx, st)
}

func (s *VideoService) finish(ctx context.Context, st *VideoStatus) error {
	if err := s.put(ctx, st); err != nil {
		return fmt.Errorf("cache final status of video %s: %w", st.RequestID, err)
	}
	return nil
}

func (s *VideoService) put(ctx context.Context, st *VideoStatus) error {
	st.UpdatedAt = s.now()
	return s.statuses.Put(ctx, st)
}

// SaveVideo stores a video record posted by the client.
func (s *VideoService) SaveVideo(userID uint, req SaveVideoRequest) (*models.VideoGeneration, error) {
	if strings.TrimSpace(req.SourceImageURL) == "" || strings.TrimSpace(req.SourceVideoURL) == "" || strings.TrimSpace(req.ResultURL) == "" {
		return nil, validationError("Missing required fields")
	}
	orientation, ok := normalizeOrientation(req.CharacterOrientation)
	if !ok {
		return nil, validationError("Character orientation must be image or video")
	}
	video := &models.VideoGeneration{
		UserID:               userID,
		CharacterOrientation: orientation,
		SourceImageURL:       req.SourceImageURL,
		SourceVideoURL:       req.SourceVideoURL,
		ResultURL:            req.ResultURL,
	}
	if p := strings.TrimSpace(req.Prompt); p != "" {
		video.Prompt = &p
	}
	if f := strings.TrimSpace(req.FileName); f != "" {
		video.FileName = &f
	}
	if err := s.history.CreateVideo(video); err != nil {
		return nil, err
	}
	return video, nil
}
