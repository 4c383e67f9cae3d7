package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CreatorStudio/app/models"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/generation"
)

// VideoRecords is the video part of the generation repository.
type VideoRecords interface {
	ListVideosByUser(userID uint, limit int) ([]models.VideoGeneration, error)
	GetVideoForUser(id, userID uint) (*models.VideoGeneration, error)
	DeleteVideo(id uint) error
}

// VideoController submits motion videos and manages saved ones.
type VideoController struct {
	videos  *generation.VideoService
	records VideoRecords
}

func NewVideoController(videos *generation.VideoService, records VideoRecords) *VideoController {
	return &VideoController{videos: videos, records: records}
}

// HandleGenerate submits a video request and returns its request id.
func (vc *VideoController) HandleGenerate(c *fiber.Ctx) error {
	var req generation.VideoSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := vc.videos.Submit(ctx, currentUserID(c), req)
	if err != nil {
		var provider *generation.ProviderError
		if errors.As(err, &provider) {
			return jsonError(c, fiber.StatusInternalServerError, provider.Message)
		}
		return generationError(c, "Failed to start video generation", err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"requestId": st.RequestID,
		"status":    st.Status,
		"message":   st.Message,
	})
}

// HandleStatus returns the last polled status of one of the caller's requests.
func (vc *VideoController) HandleStatus(c *fiber.Ctx) error {
	requestID := c.Params("requestId")
	if requestID == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing request ID")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := vc.videos.Status(ctx, currentUserID(c), requestID)
	if err != nil {
		if errors.Is(err, generation.ErrVideoStatusNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Video request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch video status")
	}
	return c.JSON(st)
}

// HandleSave stores a finished video posted by the client.
func (vc *VideoController) HandleSave(c *fiber.Ctx) error {
	var req generation.SaveVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	video, err := vc.videos.SaveVideo(currentUserID(c), req)
	if err != nil {
		var invalid *generation.ValidationError
		if errors.As(err, &invalid) {
			return jsonError(c, fiber.StatusBadRequest, invalid.Message)
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to save video")
	}
	return c.JSON(fiber.Map{"success": true, "video": video})
}

func (vc *VideoController) HandleList(c *fiber.Ctx) error {
	videos, err := vc.records.ListVideosByUser(currentUserID(c), repository.DefaultHistoryLimit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch videos")
	}
	if videos == nil {
		videos = []models.VideoGeneration{}
	}
	return c.JSON(fiber.Map{"generations": videos})
}

// HandleDelete removes one of the caller's videos, selected by ?id=.
func (vc *VideoController) HandleDelete(c *fiber.Ctx) error {
	raw := c.Query("id")
	if raw == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing video ID")
	}
	id, ok := parseUint(raw)
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "Video not found")
	}

	video, err := vc.records.GetVideoForUser(id, currentUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Video not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "Failed to delete video")
	}
	if err := vc.records.DeleteVideo(video.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Failed to delete video")
	}
	return c.JSON(fiber.Map{"success": true})
}
