package handlers

import (
	"net/http"
	"strconv"
	"time"

	"feelings/api/middleware"
	"feelings/models"
	"feelings/services"

	"github.com/gin-gonic/gin"
)

var feedService = services.NewFeedService()

func callerIdentity(c *gin.Context) (string, models.Role) {
	identity := c.GetString("identity")
	role, _ := c.Get("role")
	userRole, _ := role.(models.Role)
	return identity, userRole
}

func respondError(c *gin.Context, err error) {
	c.JSON(services.ErrorStatus(err), gin.H{
		"success": false,
		"message": err.Error(),
	})
}

// ListFeelings returns the whole feed, newest first.
func ListFeelings(c *gin.Context) {
	feed, err := feedService.ListFeelings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    feed,
		"message": "Feelings retrieved successfully",
	})
}

// GetFeeling returns one feeling with its likes and comments.
func GetFeeling(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid feeling ID"})
		return
	}

	feeling, err := feedService.GetFeeling(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    feeling,
		"message": "Feeling retrieved successfully",
	})
}

// CreateFeeling posts a new feeling attributed to the caller.
func CreateFeeling(c *gin.Context) {
	var req struct {
		Text        string `json:"text"`
		ClientToken string `json:"clientToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	identity, role := callerIdentity(c)
	start := time.Now()
	feeling, err := feedService.CreateFeeling(c.Request.Context(), models.NewFeelingPayload{
		Text:        req.Text,
		Author:      identity,
		AuthorRole:  role,
		ClientToken: req.ClientToken,
	}, nil)
	middleware.RecordFeedMutation("create", "rest", mutationStatus(err), time.Since(start))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    feeling.ToFeed(),
		"message": "Feeling posted successfully",
	})
}

// ToggleLike flips the caller's like on a feeling.
func ToggleLike(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid feeling ID"})
		return
	}

	identity, role := callerIdentity(c)
	start := time.Now()
	feeling, wasLiked, err := feedService.ToggleLike(c.Request.Context(), models.ToggleLikePayload{
		FeelingID: id,
		UserID:    identity,
		UserRole:  role,
	}, nil)
	middleware.RecordFeedMutation("toggle_like", "rest", mutationStatus(err), time.Since(start))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Feeling unliked"
	if wasLiked {
		message = "Feeling liked"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"feelingId":  feeling.ID,
			"wasLiked":   wasLiked,
			"likesCount": feeling.LikesCount(),
		},
		"message": message,
	})
}

// AddComment appends the caller's comment to a feeling.
func AddComment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid feeling ID"})
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	identity, role := callerIdentity(c)
	start := time.Now()
	_, comment, err := feedService.AddComment(c.Request.Context(), models.NewCommentPayload{
		FeelingID:  id,
		Text:       req.Text,
		Author:     identity,
		AuthorRole: role,
	}, nil)
	middleware.RecordFeedMutation("comment", "rest", mutationStatus(err), time.Since(start))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"feelingId": id,
			"comment":   comment,
		},
		"message": "Comment added successfully",
	})
}

// RebuildFeedCache repopulates the Redis feed cache from the store.
func RebuildFeedCache(c *gin.Context) {
	if services.QueueServiceInstance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Queue service not available"})
		return
	}

	err := services.QueueServiceInstance.EnqueueCacheRefresh(c.Request.Context(), services.CacheRefreshTask{Action: "rebuild"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to enqueue rebuild"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Feed cache rebuild queued"})
}

// GetQueueStats reports the cache queue backlog.
func GetQueueStats(c *gin.Context) {
	if services.QueueServiceInstance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Queue service not available"})
		return
	}

	queueLength, err := services.QueueServiceInstance.GetQueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get queue stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"queue_length": queueLength,
			"workers":      services.QUEUE_WORKER_COUNT,
		},
	})
}

func mutationStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
