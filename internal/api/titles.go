package api

import (
	"log/slog"
	"net/http"

	"reviewhub/internal/model"

	"github.com/gin-gonic/gin"
)

// titleResponse 作品的对外表示，rating 为评价平均分。
type titleResponse struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Year        int           `json:"year"`
	Description string        `json:"description"`
	Rating      float64       `json:"rating"`
	Category    refResponse   `json:"category"`
	Genres      []refResponse `json:"genre"`
}

func toTitleResponse(t *TitleWithRating) titleResponse {
	genres := make([]refResponse, 0, len(t.Genres))
	for _, g := range t.Genres {
		genres = append(genres, refResponse{Name: g.Name, Slug: g.Slug})
	}
	return titleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Description: t.Description,
		Rating:      t.Rating,
		Category:    refResponse{Name: t.Category.Name, Slug: t.Category.Slug},
		Genres:      genres,
	}
}

type createTitleRequest struct {
	Name        string   `json:"name" binding:"required,max=256"`
	Year        int      `json:"year" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" binding:"required"`
	Genres      []string `json:"genre"`
}

type updateTitleRequest struct {
	Name        *string   `json:"name"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Genres      *[]string `json:"genre"`
}

// handleListTitles 作品列表，支持分类 / 流派 / 名称 / 年份过滤。
//
// GET /api/v1/titles?category=&genre=&name=&year=&limit=&offset=
func (s *Server) handleListTitles(c *gin.Context) {
	limit, offset := s.pageParams(c)
	filter := TitleFilter{
		Category: c.Query("category"),
		Genre:    c.Query("genre"),
		Name:     c.Query("name"),
		Year:     parseQueryInt(c, "year", 0),
		Limit:    limit,
		Offset:   offset,
	}

	titles, count, err := s.titles.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("list titles failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list titles failed"})
		return
	}

	results := make([]titleResponse, 0, len(titles))
	for i := range titles {
		results = append(results, toTitleResponse(&titles[i]))
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleGetTitle 作品详情。
func (s *Server) handleGetTitle(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}
	title, err := s.titles.Get(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query title failed"})
		return
	}
	c.JSON(http.StatusOK, toTitleResponse(title))
}

// handleCreateTitle 创建作品，仅管理员。分类与流派按 slug 关联。
func (s *Server) handleCreateTitle(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	var req createTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateYear(req.Year); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := s.catalog.GetCategoryBySlug(c.Request.Context(), req.Category)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
		return
	}
	genres, ok := s.resolveGenres(c, req.Genres)
	if !ok {
		return
	}

	title := &model.Title{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		CategoryID:  category.ID,
		Category:    *category,
		Genres:      genres,
	}
	if err := s.titles.Create(c.Request.Context(), title); err != nil {
		s.logger.Error("create title failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create title failed"})
		return
	}

	c.JSON(http.StatusCreated, toTitleResponse(&TitleWithRating{Title: *title}))
}

// handleUpdateTitle 部分更新作品，仅管理员。
//
// genre 字段一旦出现就整体替换关联，传空数组即清空。
func (s *Server) handleUpdateTitle(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}
	existing, err := s.titles.Get(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query title failed"})
		return
	}
	title := existing.Title

	var req updateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		title.Name = *req.Name
	}
	if req.Year != nil {
		if err := model.ValidateYear(*req.Year); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		title.Year = *req.Year
	}
	if req.Description != nil {
		title.Description = *req.Description
	}
	if req.Category != nil {
		category, err := s.catalog.GetCategoryBySlug(c.Request.Context(), *req.Category)
		if err != nil {
			if isNotFound(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
			return
		}
		title.CategoryID = category.ID
		title.Category = *category
	}

	var genres []model.Genre
	if req.Genres != nil {
		resolved, ok := s.resolveGenres(c, *req.Genres)
		if !ok {
			return
		}
		genres = resolved
		title.Genres = resolved
	}

	if err := s.titles.Update(c.Request.Context(), &title, genres); err != nil {
		s.logger.Error("update title failed", slog.Uint64("title_id", uint64(title.ID)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update title failed"})
		return
	}

	c.JSON(http.StatusOK, toTitleResponse(&TitleWithRating{Title: title, Rating: existing.Rating}))
}

// handleDeleteTitle 删除作品及其评价，仅管理员。
func (s *Server) handleDeleteTitle(c *gin.Context) {
	if _, ok := s.requireCatalogWrite(c); !ok {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}
	existing, err := s.titles.Get(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query title failed"})
		return
	}

	if err := s.titles.Delete(c.Request.Context(), &existing.Title); err != nil {
		s.logger.Error("delete title failed", slog.Uint64("title_id", uint64(id)), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete title failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveGenres 把 slug 列表解析成流派记录，存在未知 slug 时返回 400。
func (s *Server) resolveGenres(c *gin.Context, slugs []string) ([]model.Genre, bool) {
	if len(slugs) == 0 {
		return []model.Genre{}, true
	}
	genres, err := s.catalog.GetGenresBySlugs(c.Request.Context(), slugs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query genres failed"})
		return nil, false
	}

	found := make(map[string]bool, len(genres))
	for _, g := range genres {
		found[g.Slug] = true
	}
	for _, slug := range slugs {
		if !found[slug] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown genre: " + slug})
			return nil, false
		}
	}
	return genres, true
}
