package api

import (
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"

	"github.com/gin-gonic/gin"
)

// commentResponse 留言的对外表示。
type commentResponse struct {
	ID      uint      `json:"id"`
	Author  string    `json:"author"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
}

func toCommentResponse(cm *model.Comment) commentResponse {
	return commentResponse{
		ID:      cm.ID,
		Author:  cm.Author.Username,
		Text:    cm.Text,
		PubDate: cm.CreatedAt,
	}
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

type updateCommentRequest struct {
	Text *string `json:"text"`
}

// loadComment 按 (title, review, comment) 路径加载留言。
func (s *Server) loadComment(c *gin.Context) (*model.Comment, bool) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return nil, false
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return nil, false
	}

	cid, ok := parseUintParam(c, "cid")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return nil, false
	}
	comment, err := s.comments.Get(c.Request.Context(), review.ID, cid)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query comment failed"})
		return nil, false
	}
	return comment, true
}

// handleListComments 评价下的留言列表，公开可读。
//
// GET /api/v1/titles/:id/reviews/:rid/comments?limit=&offset=
func (s *Server) handleListComments(c *gin.Context) {
	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return
	}

	limit, offset := s.pageParams(c)
	comments, count, err := s.comments.ListByReview(c.Request.Context(), review.ID, limit, offset)
	if err != nil {
		s.logger.Error("list comments failed", slog.Uint64("review_id", uint64(review.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list comments failed"})
		return
	}

	results := make([]commentResponse, 0, len(comments))
	for i := range comments {
		results = append(results, toCommentResponse(&comments[i]))
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleGetComment 留言详情，公开可读。
func (s *Server) handleGetComment(c *gin.Context) {
	comment, ok := s.loadComment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCommentResponse(comment))
}

// handleCreateComment 发布留言，需要登录。
func (s *Server) handleCreateComment(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Authenticated {
		abortDenied(c, actor)
		return
	}

	titleID, ok := s.loadTitleID(c)
	if !ok {
		return
	}
	review, ok := s.loadReview(c, titleID)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment := &model.Comment{
		ReviewID: review.ID,
		AuthorID: actor.ID,
		Text:     req.Text,
	}
	if err := s.comments.Create(c.Request.Context(), comment); err != nil {
		s.logger.Error("create comment failed", slog.Uint64("review_id", uint64(review.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create comment failed"})
		return
	}

	created, err := s.comments.Get(c.Request.Context(), review.ID, comment.ID)
	if err != nil {
		c.JSON(http.StatusCreated, toCommentResponse(comment))
		return
	}
	c.JSON(http.StatusCreated, toCommentResponse(created))
}

// handleUpdateComment 修改留言：作者本人、版主或管理员。
func (s *Server) handleUpdateComment(c *gin.Context) {
	comment, ok := s.loadComment(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	owner := comment.AuthorID
	if !permission.CanAccess(actor, c.Request.Method, &owner) {
		abortDenied(c, actor)
		return
	}

	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text != nil {
		if *req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
			return
		}
		comment.Text = *req.Text
	}

	if err := s.comments.Save(c.Request.Context(), comment); err != nil {
		s.logger.Error("update comment failed", slog.Uint64("comment_id", uint64(comment.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update comment failed"})
		return
	}
	c.JSON(http.StatusOK, toCommentResponse(comment))
}

// handleDeleteComment 删除留言：作者本人、版主或管理员。
func (s *Server) handleDeleteComment(c *gin.Context) {
	comment, ok := s.loadComment(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	owner := comment.AuthorID
	if !permission.CanAccess(actor, c.Request.Method, &owner) {
		abortDenied(c, actor)
		return
	}

	if err := s.comments.Delete(c.Request.Context(), comment); err != nil {
		s.logger.Error("delete comment failed", slog.Uint64("comment_id", uint64(comment.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete comment failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
