package api

import (
	"context"
	"errors"

	"reviewhub/internal/model"

	"gorm.io/gorm"
)

// UserStore 账号读写。
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, search string, limit, offset int) ([]model.User, int64, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, user *model.User) error
}

// CatalogStore 分类与流派读写。
type CatalogStore interface {
	ListCategories(ctx context.Context, search string, limit, offset int) ([]model.Category, int64, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	SaveCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, category *model.Category) error

	ListGenres(ctx context.Context, search string, limit, offset int) ([]model.Genre, int64, error)
	GetGenreBySlug(ctx context.Context, slug string) (*model.Genre, error)
	GetGenresBySlugs(ctx context.Context, slugs []string) ([]model.Genre, error)
	CreateGenre(ctx context.Context, genre *model.Genre) error
	SaveGenre(ctx context.Context, genre *model.Genre) error
	DeleteGenre(ctx context.Context, genre *model.Genre) error
}

// TitleFilter 作品列表过滤条件。
type TitleFilter struct {
	Category string // 分类 slug
	Genre    string // 流派 slug
	Name     string // 名称前缀
	Year     int
	Limit    int
	Offset   int
}

// TitleWithRating 作品及其平均评分。
type TitleWithRating struct {
	model.Title
	Rating float64
}

// TitleStore 作品读写，读取时附带评分聚合。
type TitleStore interface {
	List(ctx context.Context, filter TitleFilter) ([]TitleWithRating, int64, error)
	Get(ctx context.Context, id uint) (*TitleWithRating, error)
	Create(ctx context.Context, title *model.Title) error
	Update(ctx context.Context, title *model.Title, genres []model.Genre) error
	Delete(ctx context.Context, title *model.Title) error
}

// ReviewStore 评价读写。
type ReviewStore interface {
	ListByTitle(ctx context.Context, titleID uint, limit, offset int) ([]model.Review, int64, error)
	Get(ctx context.Context, titleID, reviewID uint) (*model.Review, error)
	ExistsForTitleAndAuthor(ctx context.Context, titleID, authorID uint) (bool, error)
	Create(ctx context.Context, review *model.Review) error
	Save(ctx context.Context, review *model.Review) error
	Delete(ctx context.Context, review *model.Review) error
}

// CommentStore 留言读写。
type CommentStore interface {
	ListByReview(ctx context.Context, reviewID uint, limit, offset int) ([]model.Comment, int64, error)
	Get(ctx context.Context, reviewID, commentID uint) (*model.Comment, error)
	Create(ctx context.Context, comment *model.Comment) error
	Save(ctx context.Context, comment *model.Comment) error
	Delete(ctx context.Context, comment *model.Comment) error
}

type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) List(ctx context.Context, search string, limit, offset int) ([]model.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.User{})
	if search != "" {
		query = query.Where("username LIKE ?", search+"%")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	users := []model.User{}
	if err := query.Order("username ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, count, nil
}

func (s dbUserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s dbUserStore) Save(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s dbUserStore) Delete(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Select("Reviews", "Comments").Delete(user).Error
}

type dbCatalogStore struct {
	db *gorm.DB
}

func (s dbCatalogStore) ListCategories(ctx context.Context, search string, limit, offset int) ([]model.Category, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Category{})
	if search != "" {
		query = query.Where("name LIKE ?", search+"%")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	categories := []model.Category{}
	if err := query.Order("slug ASC").Limit(limit).Offset(offset).Find(&categories).Error; err != nil {
		return nil, 0, err
	}
	return categories, count, nil
}

func (s dbCatalogStore) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category model.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (s dbCatalogStore) CreateCategory(ctx context.Context, category *model.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

func (s dbCatalogStore) SaveCategory(ctx context.Context, category *model.Category) error {
	return s.db.WithContext(ctx).Save(category).Error
}

func (s dbCatalogStore) DeleteCategory(ctx context.Context, category *model.Category) error {
	return s.db.WithContext(ctx).Delete(category).Error
}

func (s dbCatalogStore) ListGenres(ctx context.Context, search string, limit, offset int) ([]model.Genre, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Genre{})
	if search != "" {
		query = query.Where("name LIKE ?", search+"%")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	genres := []model.Genre{}
	if err := query.Order("slug ASC").Limit(limit).Offset(offset).Find(&genres).Error; err != nil {
		return nil, 0, err
	}
	return genres, count, nil
}

func (s dbCatalogStore) GetGenreBySlug(ctx context.Context, slug string) (*model.Genre, error) {
	var genre model.Genre
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&genre).Error; err != nil {
		return nil, err
	}
	return &genre, nil
}

func (s dbCatalogStore) GetGenresBySlugs(ctx context.Context, slugs []string) ([]model.Genre, error) {
	genres := []model.Genre{}
	if err := s.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

func (s dbCatalogStore) CreateGenre(ctx context.Context, genre *model.Genre) error {
	return s.db.WithContext(ctx).Create(genre).Error
}

func (s dbCatalogStore) SaveGenre(ctx context.Context, genre *model.Genre) error {
	return s.db.WithContext(ctx).Save(genre).Error
}

func (s dbCatalogStore) DeleteGenre(ctx context.Context, genre *model.Genre) error {
	return s.db.WithContext(ctx).Delete(genre).Error
}

type dbTitleStore struct {
	db *gorm.DB
}

func (s dbTitleStore) List(ctx context.Context, filter TitleFilter) ([]TitleWithRating, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Title{})
	if filter.Category != "" {
		query = query.Joins("JOIN categories ON categories.id = titles.category_id").
			Where("categories.slug = ?", filter.Category)
	}
	if filter.Genre != "" {
		query = query.Joins("JOIN title_genres ON title_genres.title_id = titles.id").
			Joins("JOIN genres ON genres.id = title_genres.genre_id").
			Where("genres.slug = ?", filter.Genre)
	}
	if filter.Name != "" {
		query = query.Where("titles.name LIKE ?", filter.Name+"%")
	}
	if filter.Year != 0 {
		query = query.Where("titles.year = ?", filter.Year)
	}

	// Count 在独立会话里跑，避免它的投影污染后面的 Find
	var count int64
	if err := query.Session(&gorm.Session{}).Distinct("titles.id").Count(&count).Error; err != nil {
		return nil, 0, err
	}

	titles := []model.Title{}
	if err := query.Distinct().Preload("Category").Preload("Genres").
		Order("titles.id ASC").Limit(filter.Limit).Offset(filter.Offset).
		Find(&titles).Error; err != nil {
		return nil, 0, err
	}

	ratings, err := s.ratingsFor(ctx, titleIDs(titles))
	if err != nil {
		return nil, 0, err
	}

	result := make([]TitleWithRating, 0, len(titles))
	for _, t := range titles {
		result = append(result, TitleWithRating{Title: t, Rating: ratings[t.ID]})
	}
	return result, count, nil
}

func (s dbTitleStore) Get(ctx context.Context, id uint) (*TitleWithRating, error) {
	var title model.Title
	if err := s.db.WithContext(ctx).Preload("Category").Preload("Genres").
		First(&title, id).Error; err != nil {
		return nil, err
	}

	ratings, err := s.ratingsFor(ctx, []uint{title.ID})
	if err != nil {
		return nil, err
	}
	return &TitleWithRating{Title: title, Rating: ratings[title.ID]}, nil
}

func (s dbTitleStore) Create(ctx context.Context, title *model.Title) error {
	return s.db.WithContext(ctx).Create(title).Error
}

func (s dbTitleStore) Update(ctx context.Context, title *model.Title, genres []model.Genre) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if genres != nil {
			if err := tx.Model(title).Association("Genres").Replace(genres); err != nil {
				return err
			}
		}
		return tx.Omit("Genres").Save(title).Error
	})
}

func (s dbTitleStore) Delete(ctx context.Context, title *model.Title) error {
	return s.db.WithContext(ctx).Select("Reviews").Delete(title).Error
}

// ratingsFor 为一组作品聚合平均评分，无评价的作品不在结果中（评分视为 0）。
func (s dbTitleStore) ratingsFor(ctx context.Context, ids []uint) (map[uint]float64, error) {
	ratings := map[uint]float64{}
	if len(ids) == 0 {
		return ratings, nil
	}

	rows := []struct {
		TitleID uint
		Rating  float64
	}{}
	if err := s.db.WithContext(ctx).Model(&model.Review{}).
		Select("title_id, AVG(score) AS rating").
		Where("title_id IN ?", ids).
		Group("title_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		ratings[row.TitleID] = row.Rating
	}
	return ratings, nil
}

func titleIDs(titles []model.Title) []uint {
	ids := make([]uint, 0, len(titles))
	for _, t := range titles {
		ids = append(ids, t.ID)
	}
	return ids
}

type dbReviewStore struct {
	db *gorm.DB
}

func (s dbReviewStore) ListByTitle(ctx context.Context, titleID uint, limit, offset int) ([]model.Review, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Review{}).Where("title_id = ?", titleID)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	reviews := []model.Review{}
	if err := query.Preload("Author").Order("id ASC").
		Limit(limit).Offset(offset).Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, count, nil
}

func (s dbReviewStore) Get(ctx context.Context, titleID, reviewID uint) (*model.Review, error) {
	var review model.Review
	if err := s.db.WithContext(ctx).Preload("Author").
		Where("title_id = ?", titleID).First(&review, reviewID).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (s dbReviewStore) ExistsForTitleAndAuthor(ctx context.Context, titleID, authorID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Review{}).
		Where("title_id = ? AND author_id = ?", titleID, authorID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s dbReviewStore) Create(ctx context.Context, review *model.Review) error {
	return s.db.WithContext(ctx).Create(review).Error
}

func (s dbReviewStore) Save(ctx context.Context, review *model.Review) error {
	return s.db.WithContext(ctx).Save(review).Error
}

func (s dbReviewStore) Delete(ctx context.Context, review *model.Review) error {
	return s.db.WithContext(ctx).Select("Comments").Delete(review).Error
}

type dbCommentStore struct {
	db *gorm.DB
}

func (s dbCommentStore) ListByReview(ctx context.Context, reviewID uint, limit, offset int) ([]model.Comment, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Comment{}).Where("review_id = ?", reviewID)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	comments := []model.Comment{}
	if err := query.Preload("Author").Order("id ASC").
		Limit(limit).Offset(offset).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, count, nil
}

func (s dbCommentStore) Get(ctx context.Context, reviewID, commentID uint) (*model.Comment, error) {
	var comment model.Comment
	if err := s.db.WithContext(ctx).Preload("Author").
		Where("review_id = ?", reviewID).First(&comment, commentID).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s dbCommentStore) Create(ctx context.Context, comment *model.Comment) error {
	return s.db.WithContext(ctx).Create(comment).Error
}

func (s dbCommentStore) Save(ctx context.Context, comment *model.Comment) error {
	return s.db.WithContext(ctx).Save(comment).Error
}

func (s dbCommentStore) Delete(ctx context.Context, comment *model.Comment) error {
	return s.db.WithContext(ctx).Delete(comment).Error
}

// isNotFound 统一判断记录缺失。
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
