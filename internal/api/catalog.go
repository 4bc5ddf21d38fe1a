package api

import (
	"log/slog"
	"net/http"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"

	"github.com/gin-gonic/gin"
)

// refResponse 分类 / 流派的对外表示。
type refResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type refRequest struct {
	Name string `json:"name" binding:"required,max=256"`
	Slug string `json:"slug" binding:"required"`
}

type refPatchRequest struct {
	Name *string `json:"name"`
}

// requireCatalogWrite 目录写操作统一的管理员门槛。
func (s *Server) requireCatalogWrite(c *gin.Context) (permission.Actor, bool) {
	actor := actorFrom(c)
	if !permission.CanWrite(actor, c.Request.Method) {
		abortDenied(c, actor)
		return actor, false
	}
	return actor, true
}

// handleListCategories 分类列表，公开可读。
//
// GET /api/v1/categories?search=&limit=&offset=
func (s *Server) handleListCategories(c *gin.Context) {
	limit, offset := s.pageParams(c)
	categories, count, err := s.catalog.ListCategories(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		s.logger.Error("list categories failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list categories failed"})
		return
	}

	results := make([]refResponse, 0, len(categories))
	for _, cat := range categories {
		results = append(results, refResponse{Name: cat.Name, Slug: cat.Slug})
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleCreateCategory 创建分类，仅管理员。
func (s *Server) handleCreateCategory(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	var req refRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateSlug(req.Slug); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := &model.Category{Name: req.Name, Slug: req.Slug}
	if err := s.catalog.CreateCategory(c.Request.Context(), category); err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug already exists"})
			return
		}
		s.logger.Error("create category failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create category failed"})
		return
	}
	c.JSON(http.StatusCreated, refResponse{Name: category.Name, Slug: category.Slug})
}

// handleUpdateCategory 重命名分类，slug 不可变。
func (s *Server) handleUpdateCategory(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	category, err := s.catalog.GetCategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
		return
	}

	var req refPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		category.Name = *req.Name
	}

	if err := s.catalog.SaveCategory(c.Request.Context(), category); err != nil {
		s.logger.Error("update category failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update category failed"})
		return
	}
	c.JSON(http.StatusOK, refResponse{Name: category.Name, Slug: category.Slug})
}

// handleDeleteCategory 删除分类，仅管理员。
func (s *Server) handleDeleteCategory(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	category, err := s.catalog.GetCategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
		return
	}
	if err := s.catalog.DeleteCategory(c.Request.Context(), category); err != nil {
		s.logger.Error("delete category failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete category failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListGenres 流派列表，公开可读。
func (s *Server) handleListGenres(c *gin.Context) {
	limit, offset := s.pageParams(c)
	genres, count, err := s.catalog.ListGenres(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		s.logger.Error("list genres failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list genres failed"})
		return
	}

	results := make([]refResponse, 0, len(genres))
	for _, g := range genres {
		results = append(results, refResponse{Name: g.Name, Slug: g.Slug})
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleCreateGenre 创建流派，仅管理员。
func (s *Server) handleCreateGenre(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	var req refRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateSlug(req.Slug); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	genre := &model.Genre{Name: req.Name, Slug: req.Slug}
	if err := s.catalog.CreateGenre(c.Request.Context(), genre); err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug already exists"})
			return
		}
		s.logger.Error("create genre failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create genre failed"})
		return
	}
	c.JSON(http.StatusCreated, refResponse{Name: genre.Name, Slug: genre.Slug})
}

// handleUpdateGenre 重命名流派，slug 不可变。
func (s *Server) handleUpdateGenre(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	genre, err := s.catalog.GetGenreBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "genre not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query genre failed"})
		return
	}

	var req refPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		genre.Name = *req.Name
	}

	if err := s.catalog.SaveGenre(c.Request.Context(), genre); err != nil {
		s.logger.Error("update genre failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update genre failed"})
		return
	}
	c.JSON(http.StatusOK, refResponse{Name: genre.Name, Slug: genre.Slug})
}

// handleDeleteGenre 删除流派，仅管理员。
func (s *Server) handleDeleteGenre(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	genre, err := s.catalog.GetGenreBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "genre not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query genre failed"})
		return
	}
	if err := s.catalog.DeleteGenre(c.Request.Context(), genre); err != nil {
		s.logger.Error("delete genre failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete genre failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
