package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/podgraph/backend/internal/queue"
	"github.com/podgraph/backend/internal/server/middleware"
	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"
	"github.com/podgraph/backend/pkg/youtube"

	"github.com/labstack/echo/v4"
)

// CreatePodcastHandler registers a YouTube video for the user and queues
// an ingestion job for it. A podcast whose graph already exists is a
// conflict.
func CreatePodcastHandler(c echo.Context) error {
	type createPodcastBody struct {
		YoutubeURL string `json:"youtube_url" validate:"required"`
	}

	data := new(createPodcastBody)
	if err := c.Bind(data); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(data); err != nil {
		return invalidParams(c)
	}
	data.YoutubeURL = strings.TrimSpace(data.YoutubeURL)

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	videoID, err := youtube.ExtractVideoID(data.YoutubeURL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid YouTube URL"})
	}

	podcast, err := app.Store.FindPodcastByVideo(ctx, user.UserID, videoID)
	switch {
	case err == nil:
		if podcast.GraphExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Graph already exists for this podcast"})
		}
	case errors.Is(err, store.ErrNotFound):
		meta, err := app.YouTube.FetchMetadata(ctx, data.YoutubeURL)
		if err != nil {
			logger.Warn("[Server] Failed to fetch video metadata", "video_id", videoID, "err", err)
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to fetch video metadata"})
		}
		podcast = common.Podcast{
			UserID:       user.UserID,
			YoutubeURL:   data.YoutubeURL,
			VideoID:      videoID,
			Title:        meta.Title,
			ChannelName:  meta.ChannelName,
			ThumbnailURL: meta.ThumbnailURL,
		}
		if err := app.Store.CreatePodcast(ctx, &podcast); err != nil {
			// A concurrent request may have created it first.
			existing, findErr := app.Store.FindPodcastByVideo(ctx, user.UserID, videoID)
			if findErr != nil {
				return errorResponse(c, err)
			}
			podcast = existing
		}
	default:
		return errorResponse(c, err)
	}

	job := common.IngestionJob{
		PodcastID: podcast.ID,
		UserID:    user.UserID,
		Status:    common.JobStatusPending,
		Stage:     common.JobStatusPending,
	}
	if err := app.Store.CreateJob(ctx, &job); err != nil {
		return errorResponse(c, err)
	}

	err = app.Publisher.PublishIngest(ctx, queue.IngestMsg{
		JobID:     job.ID,
		PodcastID: podcast.ID,
		UserID:    user.UserID,
	})
	if err != nil {
		msg := "failed to schedule ingestion"
		if updateErr := app.Store.UpdateJobStatus(ctx, job.ID, store.JobUpdate{
			Status:       common.JobStatusFailed,
			Stage:        "Error",
			ErrorMessage: &msg,
		}); updateErr != nil {
			logger.Warn("[Server] Failed to mark job as failed", "job_id", job.ID, "err", updateErr)
		}
		return errorResponse(c, err)
	}

	logger.Info("[Server] Scheduled ingestion", "job_id", job.ID, "podcast_id", podcast.ID)
	return c.JSON(http.StatusCreated, job)
}

func GetPodcastsHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	podcasts, err := app.Store.ListPodcasts(c.Request().Context(), user.UserID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, podcasts)
}

func GetJobHandler(c echo.Context) error {
	type getJobParams struct {
		JobID string `param:"id" validate:"required"`
	}

	params := new(getJobParams)
	if err := c.Bind(params); err != nil {
		return invalidParams(c)
	}
	if err := c.Validate(params); err != nil {
		return invalidParams(c)
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return unauthorized(c)
	}

	app := c.(*middleware.AppContext).App
	job, err := app.Store.GetJob(c.Request().Context(), params.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
		}
		return errorResponse(c, err)
	}
	if job.UserID != user.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Not your job"})
	}

	return c.JSON(http.StatusOK, job)
}
