package generation

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/s3backup"
)

const (
	maxArchiveDownload   = 32 << 20
	archiveDownloadLimit = 2
)

// ObjectStore receives archived bytes.
type ObjectStore interface {
	PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// ArchiveRepository loads generations and records archive keys.
type ArchiveRepository interface {
	GetAvatarByUUID(uuid string) (*models.AvatarGeneration, error)
	SetImageArchiveKey(imageID uint, key string) error
}

// Thumbnailer renders a WebP preview of an archived image.
type Thumbnailer interface {
	Thumbnail(data []byte) ([]byte, error)
}

type jobEnqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Archiver copies provider-hosted images into the S3 bucket so history
// survives provider URL expiry.
type Archiver struct {
	queue      jobEnqueuer
	repo       ArchiveRepository
	store      ObjectStore
	thumbs     Thumbnailer
	httpClient *http.Client
}

func NewArchiver(queue jobEnqueuer, repo ArchiveRepository, store ObjectStore) *Archiver {
	return &Archiver{
		queue:      queue,
		repo:       repo,
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetThumbnailer enables preview uploads next to each archived image.
func (a *Archiver) SetThumbnailer(t Thumbnailer) {
	a.thumbs = t
}

// ScheduleArchive enqueues an asset_archive job for gen.
func (a *Archiver) ScheduleArchive(ctx context.Context, gen *models.AvatarGeneration) error {
	payload := jobqueue.AssetArchiveJobPayload{GenerationID: gen.ID, GenerationUUID: gen.UUID}
	_, err := a.queue.EnqueueJob(ctx, jobqueue.JobTypeAssetArchive, payload.ToMap())
	return err
}

// HandleArchiveJob is the asset_archive job handler. Images that already
// carry an archive key are skipped, so a retried job only redoes failures.
func (a *Archiver) HandleArchiveJob(ctx context.Context, job *jobqueue.Job) error {
	p, err := jobqueue.AssetArchiveJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid archive payload: %w", err)
	}
	gen, err := a.repo.GetAvatarByUUID(p.GenerationUUID)
	if err != nil {
		return fmt.Errorf("load generation %s: %w", p.GenerationUUID, err)
	}

	var (
		mu       sync.Mutex
		archived int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveDownloadLimit)
	for i := range gen.Images {
		img := gen.Images[i]
		if img.ArchiveKey != "" {
			continue
		}
		g.Go(func() error {
			data, contentType, err := a.download(gctx, img.URL)
			if err != nil {
				return fmt.Errorf("download image %d: %w", img.ID, err)
			}
			ext := extensionFor(img.URL, contentType)
			key := s3backup.AvatarObjectKey(gen.UUID, img.Position, ext, gen.CreatedAt)
			if contentType == "" {
				contentType = s3backup.ContentTypeForExt(ext)
			}
			if err := a.store.PutObject(gctx, key, data, contentType); err != nil {
				return err
			}
			a.uploadThumbnail(gctx, gen, img, data)
			if err := a.repo.SetImageArchiveKey(img.ID, key); err != nil {
				return fmt.Errorf("record archive key for image %d: %w", img.ID, err)
			}
			mu.Lock()
			archived++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Infof("[Archive] Generation %s: archived %d image(s)", gen.UUID, archived)
	return nil
}

// uploadThumbnail is best effort; a missing preview never fails the job.
func (a *Archiver) uploadThumbnail(ctx context.Context, gen *models.AvatarGeneration, img models.AvatarImage, data []byte) {
	if a.thumbs == nil {
		return
	}
	thumb, err := a.thumbs.Thumbnail(data)
	if err != nil {
		log.Warnf("[Archive] Generation %s image %d: thumbnail skipped: %v", gen.UUID, img.Position, err)
		return
	}
	key := s3backup.AvatarThumbnailKey(gen.UUID, img.Position, gen.CreatedAt)
	if err := a.store.PutObject(ctx, key, thumb, "image/webp"); err != nil {
		log.Warnf("[Archive] Generation %s image %d: thumbnail upload failed: %v", gen.UUID, img.Position, err)
	}
}

func (a *Archiver) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveDownload))
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if mt, _, perr := mime.ParseMediaType(ct); perr == nil {
		ct = mt
	}
	return data, ct, nil
}

// extensionFor prefers the extension in the URL path and falls back to the
// content type, then to .png.
func extensionFor(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}
