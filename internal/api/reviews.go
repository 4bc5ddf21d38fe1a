package api

import (
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"
	"reviewhub/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// reviewResponse 评价的对外表示。
type reviewResponse struct {
	ID      uint      `json:"id"`
	Author  string    `json:"author"`
	Text    string    `json:"text"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

func toReviewResponse(r *model.Review) reviewResponse {
	return reviewResponse{
		ID:      r.ID,
		Author:  r.Author.Username,
		Text:    r.Text,
		Score:   r.Score,
		PubDate: r.CreatedAt,
	}
}

type createReviewRequest struct {
	Text  string `json:"text" binding:"required"`
	Score int    `json:"score" binding:"required"`
}

type updateReviewRequest struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

// loadTitleID 校验路径中的作品存在并返回其 ID。
func (s *Server) loadTitleID(c *gin.Context) (uint, bool) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return 0, false
	}
	if _, err := s.titles.Get(c.Request.Context(), id); err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
			return 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query title failed"})
		return 0, false
	}
	return id, true
}

// loadReview 按 (title, review) 路径加载评价。
func (s *Server) loadReview(c *gin.Context, titleID uint) (*model.Review, bool) {
	rid, ok := parseUintParam(c, "rid")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return nil, false
	}
	review, err := s.reviews.Get(c.Request.Context(), titleID, rid)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query review failed"})
		return nil, false
	}
	return review, true
}

// handleListReviews 作品的评价列表，公开可读。
//
// GET /api/v1/titles/:id/reviews?limit=&offset=
func (s *Server) handleListReviews(c *gin.Context) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}

	limit, offset := s.pageParams(c)
	reviews, count, err := s.reviews.ListByTitle(c.Request.Context(), titleID, limit, offset)
	if err != nil {
		s.logger.Error("list reviews failed", slog.Uint64("title_id", uint64(titleID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews failed"})
		return
	}

	results := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		results = append(results, toReviewResponse(&reviews[i]))
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleGetReview 评价详情，公开可读。
func (s *Server) handleGetReview(c *gin.Context) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toReviewResponse(review))
}

// handleCreateReview 发布评价，需要登录。
//
// 同一作者对同一作品只允许一条评价：先查重拒绝，
// 并发竞争下由唯一索引兜底返回 409。
func (s *Server) handleCreateReview(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Authenticated {
		abortDenied(c, actor)
		return
	}
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateScore(req.Score); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exists, err := s.reviews.ExistsForTitleAndAuthor(c.Request.Context(), titleID, actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query review failed"})
		return
	}
	if exists {
		metrics.ReviewDuplicateRejectedTotal.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "only one review may exist per title per author"})
		return
	}

	review := &model.Review{
		TitleID:  titleID,
		AuthorID: actor.ID,
		Text:     req.Text,
		Score:    req.Score,
	}
	if err := s.reviews.Create(c.Request.Context(), review); err != nil {
		if isDuplicate(err) {
			metrics.ReviewDuplicateRejectedTotal.Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "only one review may exist per title per author"})
			return
		}
		s.logger.Error("create review failed", slog.Uint64("title_id", uint64(titleID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create review failed"})
		return
	}

	created, err := s.reviews.Get(c.Request.Context(), titleID, review.ID)
	if err != nil {
		c.JSON(http.StatusCreated, toReviewResponse(review))
		return
	}
	c.JSON(http.StatusCreated, toReviewResponse(created))
}

// handleUpdateReview 修改评价：作者本人、版主或管理员。
func (s *Server) handleUpdateReview(c *gin.Context) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return
	}

	actor := actorFrom(c)
	owner := review.AuthorID
	if !permission.CanAccess(actor, c.Request.Method, &owner) {
		abortDenied(c, actor)
		return
	}

	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text != nil {
		if *req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
			return
		}
		review.Text = *req.Text
	}
	if req.Score != nil {
		if err := model.ValidateScore(*req.Score); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		review.Score = *req.Score
	}

	if err := s.reviews.Save(c.Request.Context(), review); err != nil {
		s.logger.Error("update review failed", slog.Uint64("review_id", uint64(review.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update review failed"})
		return
	}
	c.JSON(http.StatusOK, toReviewResponse(review))
}

// handleDeleteReview 删除评价及其留言：作者本人、版主或管理员。
func (s *Server) handleDeleteReview(c *gin.Context) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return
	}

	actor := actorFrom(c)
	owner := review.AuthorID
	if !permission.CanAccess(actor, c.Request.Method, &owner) {
		abortDenied(c, actor)
		return
	}

	if err := s.reviews.Delete(c.Request.Context(), review); err != nil {
		s.logger.Error("delete review failed", slog.Uint64("review_id", uint64(review.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete review failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
