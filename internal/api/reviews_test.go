package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"reviewhub/internal/config"
	"reviewhub/internal/model"
	"reviewhub/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type fakeTitleStore struct {
	titles map[uint]*TitleWithRating
}

func (s *fakeTitleStore) List(ctx context.Context, filter TitleFilter) ([]TitleWithRating, int64, error) {
	result := []TitleWithRating{}
	for _, t := range s.titles {
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (s *fakeTitleStore) Get(ctx context.Context, id uint) (*TitleWithRating, error) {
	if t, ok := s.titles[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeTitleStore) Create(ctx context.Context, title *model.Title) error {
	title.ID = uint(len(s.titles) + 1)
	s.titles[title.ID] = &TitleWithRating{Title: *title}
	return nil
}

func (s *fakeTitleStore) Update(ctx context.Context, title *model.Title, genres []model.Genre) error {
	s.titles[title.ID] = &TitleWithRating{Title: *title}
	return nil
}

func (s *fakeTitleStore) Delete(ctx context.Context, title *model.Title) error {
	delete(s.titles, title.ID)
	return nil
}

type fakeReviewStore struct {
	reviews    map[uint]*model.Review
	nextID     uint
	createErr  error
	createCall int
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{reviews: map[uint]*model.Review{}, nextID: 1}
}

func (s *fakeReviewStore) ListByTitle(ctx context.Context, titleID uint, limit, offset int) ([]model.Review, int64, error) {
	result := []model.Review{}
	for _, r := range s.reviews {
		if r.TitleID == titleID {
			result = append(result, *r)
		}
	}
	return result, int64(len(result)), nil
}

func (s *fakeReviewStore) Get(ctx context.Context, titleID, reviewID uint) (*model.Review, error) {
	if r, ok := s.reviews[reviewID]; ok && r.TitleID == titleID {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeReviewStore) ExistsForTitleAndAuthor(ctx context.Context, titleID, authorID uint) (bool, error) {
	for _, r := range s.reviews {
		if r.TitleID == titleID && r.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeReviewStore) Create(ctx context.Context, review *model.Review) error {
	s.createCall++
	if s.createErr != nil {
		return s.createErr
	}
	review.ID = s.nextID
	s.nextID++
	s.reviews[review.ID] = review
	return nil
}

func (s *fakeReviewStore) Save(ctx context.Context, review *model.Review) error {
	s.reviews[review.ID] = review
	return nil
}

func (s *fakeReviewStore) Delete(ctx context.Context, review *model.Review) error {
	delete(s.reviews, review.ID)
	return nil
}

// testActor 模拟认证中间件写入的上下文。
type testActor struct {
	id        uint
	role      string
	superuser bool
}

func newTestServer(titles TitleStore, reviews ReviewStore, comments CommentStore) *Server {
	metrics.InitMetrics()
	return &Server{
		cfg: &config.Config{
			App: config.AppConfig{DefaultPageSize: 20, MaxPageSize: 100},
		},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		titles:   titles,
		reviews:  reviews,
		comments: comments,
	}
}

// serveWithActor 把请求打到注册在 route 模板上的 handler；actor 为 nil 表示匿名。
func serveWithActor(method, route, path string, actor *testActor, handler gin.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if actor != nil {
			c.Set("userID", actor.id)
			c.Set("role", actor.role)
			c.Set("superuser", actor.superuser)
		}
		handler(c)
	})

	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func singleTitleStore() *fakeTitleStore {
	return &fakeTitleStore{titles: map[uint]*TitleWithRating{
		1: {Title: model.Title{ID: 1, Name: "Dune", Year: 1965}},
	}}
}

func TestCreateReview_Normal(t *testing.T) {
	reviews := newFakeReviewStore()
	s := newTestServer(singleTitleStore(), reviews, nil)

	actor := &testActor{id: 7, role: "user"}
	w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
		createReviewRequest{Text: "great", Score: 8})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(reviews.reviews) != 1 {
		t.Fatalf("expected review to be stored")
	}
}

func TestCreateReview_Anonymous(t *testing.T) {
	reviews := newFakeReviewStore()
	s := newTestServer(singleTitleStore(), reviews, nil)

	w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", nil, s.handleCreateReview,
		createReviewRequest{Text: "great", Score: 8})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if reviews.createCall != 0 {
		t.Fatalf("expected no create call")
	}
}

func TestCreateReview_ScoreOutOfRange(t *testing.T) {
	reviews := newFakeReviewStore()
	s := newTestServer(singleTitleStore(), reviews, nil)
	actor := &testActor{id: 7, role: "user"}

	for _, score := range []int{-1, 0, 11, 100} {
		w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
			createReviewRequest{Text: "great", Score: score})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("score %d: expected 400, got %d", score, w.Code)
		}
	}
	for _, score := range []int{1, 10} {
		store := newFakeReviewStore()
		s := newTestServer(singleTitleStore(), store, nil)
		w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
			createReviewRequest{Text: "great", Score: score})
		if w.Code != http.StatusCreated {
			t.Fatalf("score %d: expected 201, got %d", score, w.Code)
		}
	}
}

func TestCreateReview_DuplicateRejected(t *testing.T) {
	reviews := newFakeReviewStore()
	s := newTestServer(singleTitleStore(), reviews, nil)
	actor := &testActor{id: 7, role: "user"}

	serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
		createReviewRequest{Text: "first", Score: 8})
	w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
		createReviewRequest{Text: "second", Score: 9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %d", w.Code)
	}
	if len(reviews.reviews) != 1 {
		t.Fatalf("expected single review, got %d", len(reviews.reviews))
	}

	// 其他作者不受影响
	other := &testActor{id: 8, role: "user"}
	w = serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", other, s.handleCreateReview,
		createReviewRequest{Text: "mine", Score: 5})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for other author, got %d", w.Code)
	}
}

func TestCreateReview_RaceLosesToUniqueIndex(t *testing.T) {
	reviews := newFakeReviewStore()
	reviews.createErr = gorm.ErrDuplicatedKey
	s := newTestServer(singleTitleStore(), reviews, nil)
	actor := &testActor{id: 7, role: "user"}

	w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/1/reviews", actor, s.handleCreateReview,
		createReviewRequest{Text: "great", Score: 8})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCreateReview_TitleMissing(t *testing.T) {
	s := newTestServer(&fakeTitleStore{titles: map[uint]*TitleWithRating{}}, newFakeReviewStore(), nil)
	actor := &testActor{id: 7, role: "user"}

	w := serveWithActor(http.MethodPost, "/titles/:id/reviews", "/titles/42/reviews", actor, s.handleCreateReview,
		createReviewRequest{Text: "great", Score: 8})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateReview_Permissions(t *testing.T) {
	cases := []struct {
		name  string
		actor *testActor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"other user", &testActor{id: 99, role: "user"}, http.StatusForbidden},
		{"author", &testActor{id: 7, role: "user"}, http.StatusOK},
		{"moderator", &testActor{id: 99, role: "moderator"}, http.StatusOK},
		{"admin", &testActor{id: 99, role: "admin"}, http.StatusOK},
		{"superuser", &testActor{id: 99, role: "user", superuser: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reviews := newFakeReviewStore()
			reviews.reviews[1] = &model.Review{ID: 1, TitleID: 1, AuthorID: 7, Text: "old", Score: 5}
			reviews.nextID = 2
			s := newTestServer(singleTitleStore(), reviews, nil)

			w := serveWithActor(http.MethodPatch, "/titles/:id/reviews/:rid", "/titles/1/reviews/1", tc.actor, s.handleUpdateReview,
				updateReviewRequest{Text: strPtr("new")})
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.want == http.StatusOK && reviews.reviews[1].Text != "new" {
				t.Fatalf("expected text to be updated")
			}
		})
	}
}

func TestDeleteReview_Author(t *testing.T) {
	reviews := newFakeReviewStore()
	reviews.reviews[1] = &model.Review{ID: 1, TitleID: 1, AuthorID: 7, Text: "old", Score: 5}
	s := newTestServer(singleTitleStore(), reviews, nil)

	w := serveWithActor(http.MethodDelete, "/titles/:id/reviews/:rid", "/titles/1/reviews/1", &testActor{id: 7, role: "user"},
		s.handleDeleteReview, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(reviews.reviews) != 0 {
		t.Fatalf("expected review to be removed")
	}
}

func TestListReviews_Public(t *testing.T) {
	reviews := newFakeReviewStore()
	reviews.reviews[1] = &model.Review{ID: 1, TitleID: 1, AuthorID: 7, Text: "old", Score: 5,
		Author: model.User{Username: "alice"}}
	s := newTestServer(singleTitleStore(), reviews, nil)

	w := serveWithActor(http.MethodGet, "/titles/:id/reviews", "/titles/1/reviews", nil, s.handleListReviews, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Count   int64            `json:"count"`
		Results []reviewResponse `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected payload: %s", w.Body.String())
	}
	if resp.Results[0].Author != "alice" {
		t.Fatalf("expected author username in payload")
	}
}

func strPtr(s string) *string { return &s }
