package api

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// openTestDB 建立内存数据库并迁移全部模型。
//
// 每个测试用独立命名的共享内存库，连接池内的连接才会看到同一份数据。
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Genre{},
		&model.Title{},
		&model.Review{},
		&model.Comment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func TestUserStore_UniqueUsernameAndEmail(t *testing.T) {
	db := openTestDB(t)
	store := dbUserStore{db: db}
	ctx := context.Background()

	if err := store.Create(ctx, &model.User{Username: "alice", Email: "alice@example.com", Role: permission.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, &model.User{Username: "alice", Email: "other@example.com", Role: permission.RoleUser})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for username, got %v", err)
	}
	err = store.Create(ctx, &model.User{Username: "bob", Email: "alice@example.com", Role: permission.RoleUser})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key for email, got %v", err)
	}
}

func TestReviewStore_UniquePerTitleAndAuthor(t *testing.T) {
	db := openTestDB(t)
	store := dbReviewStore{db: db}
	ctx := context.Background()

	author := model.User{Username: "alice", Email: "alice@example.com", Role: permission.RoleUser}
	mustCreate(t, db, &author)
	category := model.Category{Name: "Books", Slug: "books"}
	mustCreate(t, db, &category)
	title := model.Title{Name: "Dune", Year: 1965, CategoryID: category.ID}
	mustCreate(t, db, &title)

	if err := store.Create(ctx, &model.Review{TitleID: title.ID, AuthorID: author.ID, Text: "a", Score: 8}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := store.Create(ctx, &model.Review{TitleID: title.ID, AuthorID: author.ID, Text: "b", Score: 9})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key, got %v", err)
	}

	exists, err := store.ExistsForTitleAndAuthor(ctx, title.ID, author.ID)
	if err != nil || !exists {
		t.Fatalf("expected review to exist: %v", err)
	}
	exists, err = store.ExistsForTitleAndAuthor(ctx, title.ID, author.ID+1)
	if err != nil || exists {
		t.Fatalf("expected no review for other author: %v", err)
	}

	// 同一作者可以评价别的作品
	other := model.Title{Name: "Messiah", Year: 1969, CategoryID: category.ID}
	mustCreate(t, db, &other)
	if err := store.Create(ctx, &model.Review{TitleID: other.ID, AuthorID: author.ID, Text: "c", Score: 7}); err != nil {
		t.Fatalf("expected create on other title: %v", err)
	}
}

func TestTitleStore_RatingAggregation(t *testing.T) {
	db := openTestDB(t)
	store := dbTitleStore{db: db}
	ctx := context.Background()

	category := model.Category{Name: "Books", Slug: "books"}
	mustCreate(t, db, &category)
	title := model.Title{Name: "Dune", Year: 1965, CategoryID: category.ID}
	mustCreate(t, db, &title)

	got, err := store.Get(ctx, title.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rating != 0 {
		t.Fatalf("expected rating 0 without reviews, got %v", got.Rating)
	}

	u1 := model.User{Username: "alice", Email: "a@example.com", Role: permission.RoleUser}
	u2 := model.User{Username: "bob", Email: "b@example.com", Role: permission.RoleUser}
	mustCreate(t, db, &u1)
	mustCreate(t, db, &u2)
	mustCreate(t, db, &model.Review{TitleID: title.ID, AuthorID: u1.ID, Text: "x", Score: 8})
	mustCreate(t, db, &model.Review{TitleID: title.ID, AuthorID: u2.ID, Text: "y", Score: 10})

	got, err = store.Get(ctx, title.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rating != 9 {
		t.Fatalf("expected rating 9, got %v", got.Rating)
	}
}

func TestTitleStore_ListFilters(t *testing.T) {
	db := openTestDB(t)
	store := dbTitleStore{db: db}
	ctx := context.Background()

	books := model.Category{Name: "Books", Slug: "books"}
	movies := model.Category{Name: "Movies", Slug: "movies"}
	mustCreate(t, db, &books)
	mustCreate(t, db, &movies)
	scifi := model.Genre{Name: "Sci-Fi", Slug: "scifi"}
	drama := model.Genre{Name: "Drama", Slug: "drama"}
	mustCreate(t, db, &scifi)
	mustCreate(t, db, &drama)

	mustCreate(t, db, &model.Title{Name: "Dune", Year: 1965, CategoryID: books.ID, Genres: []model.Genre{scifi}})
	mustCreate(t, db, &model.Title{Name: "Alien", Year: 1979, CategoryID: movies.ID, Genres: []model.Genre{scifi, drama}})
	mustCreate(t, db, &model.Title{Name: "Amadeus", Year: 1984, CategoryID: movies.ID, Genres: []model.Genre{drama}})

	cases := []struct {
		name   string
		filter TitleFilter
		want   int64
	}{
		{"all", TitleFilter{Limit: 10}, 3},
		{"by category", TitleFilter{Category: "movies", Limit: 10}, 2},
		{"by genre", TitleFilter{Genre: "scifi", Limit: 10}, 2},
		{"by name prefix", TitleFilter{Name: "A", Limit: 10}, 2},
		{"by year", TitleFilter{Year: 1965, Limit: 10}, 1},
		{"category and genre", TitleFilter{Category: "movies", Genre: "drama", Limit: 10}, 2},
		{"no match", TitleFilter{Category: "books", Genre: "drama", Limit: 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			titles, count, err := store.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if count != tc.want || int64(len(titles)) != tc.want {
				t.Fatalf("expected %d titles, got count=%d len=%d", tc.want, count, len(titles))
			}
			for _, title := range titles {
				if title.Name == "" || title.Year == 0 || title.Category.Slug == "" {
					t.Fatalf("expected full row, got %+v", title.Title)
				}
			}
		})
	}
}

// 计数和查询共用一条链，投影一旦泄漏列表行就只剩 ID。
func TestTitleStore_ListReturnsFullRows(t *testing.T) {
	db := openTestDB(t)
	store := dbTitleStore{db: db}
	ctx := context.Background()

	books := model.Category{Name: "Books", Slug: "books"}
	mustCreate(t, db, &books)
	scifi := model.Genre{Name: "Sci-Fi", Slug: "scifi"}
	mustCreate(t, db, &scifi)
	mustCreate(t, db, &model.Title{Name: "Dune", Year: 1965, Description: "spice", CategoryID: books.ID, Genres: []model.Genre{scifi}})

	titles, count, err := store.List(ctx, TitleFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if count != 1 || len(titles) != 1 {
		t.Fatalf("expected one title, got count=%d len=%d", count, len(titles))
	}

	got := titles[0]
	if got.Name != "Dune" || got.Year != 1965 || got.Description != "spice" {
		t.Fatalf("expected full row, got %+v", got.Title)
	}
	if got.Category.Slug != "books" {
		t.Fatalf("expected category to be preloaded, got %+v", got.Category)
	}
	if len(got.Genres) != 1 || got.Genres[0].Slug != "scifi" {
		t.Fatalf("expected genres to be preloaded, got %+v", got.Genres)
	}
}

func TestTitleStore_UpdateReplacesGenres(t *testing.T) {
	db := openTestDB(t)
	store := dbTitleStore{db: db}
	ctx := context.Background()

	books := model.Category{Name: "Books", Slug: "books"}
	mustCreate(t, db, &books)
	scifi := model.Genre{Name: "Sci-Fi", Slug: "scifi"}
	drama := model.Genre{Name: "Drama", Slug: "drama"}
	mustCreate(t, db, &scifi)
	mustCreate(t, db, &drama)

	title := model.Title{Name: "Dune", Year: 1965, CategoryID: books.ID, Genres: []model.Genre{scifi}}
	mustCreate(t, db, &title)

	title.Name = "Dune Messiah"
	if err := store.Update(ctx, &title, []model.Genre{drama}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, title.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Dune Messiah" {
		t.Fatalf("expected renamed title, got %q", got.Name)
	}
	if len(got.Genres) != 1 || got.Genres[0].Slug != "drama" {
		t.Fatalf("expected genres to be replaced, got %+v", got.Genres)
	}
}

func TestCatalogStore_SlugUniqueAndSearch(t *testing.T) {
	db := openTestDB(t)
	store := dbCatalogStore{db: db}
	ctx := context.Background()

	if err := store.CreateCategory(ctx, &model.Category{Name: "Books", Slug: "books"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.CreateCategory(ctx, &model.Category{Name: "Other", Slug: "books"})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key, got %v", err)
	}

	if err := store.CreateCategory(ctx, &model.Category{Name: "Movies", Slug: "movies"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	categories, count, err := store.ListCategories(ctx, "Mov", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if count != 1 || len(categories) != 1 || categories[0].Slug != "movies" {
		t.Fatalf("unexpected search result: %+v", categories)
	}
}

func TestCommentStore_ScopedToReview(t *testing.T) {
	db := openTestDB(t)
	store := dbCommentStore{db: db}
	ctx := context.Background()

	author := model.User{Username: "alice", Email: "a@example.com", Role: permission.RoleUser}
	mustCreate(t, db, &author)
	category := model.Category{Name: "Books", Slug: "books"}
	mustCreate(t, db, &category)
	title := model.Title{Name: "Dune", Year: 1965, CategoryID: category.ID}
	mustCreate(t, db, &title)
	r1 := model.Review{TitleID: title.ID, AuthorID: author.ID, Text: "a", Score: 8}
	mustCreate(t, db, &r1)

	comment := model.Comment{ReviewID: r1.ID, AuthorID: author.ID, Text: "hi"}
	if err := store.Create(ctx, &comment); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, r1.ID, comment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Author.Username != "alice" {
		t.Fatalf("expected author to be preloaded, got %+v", got.Author)
	}

	// 不属于该评价的留言要报 not found
	if _, err := store.Get(ctx, r1.ID+1, comment.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}
