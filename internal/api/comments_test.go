package api

import (
	"context"
	"net/http"
	"testing"

	"reviewhub/internal/model"

	"gorm.io/gorm"
)

type fakeCommentStore struct {
	comments map[uint]*model.Comment
	nextID   uint
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: map[uint]*model.Comment{}, nextID: 1}
}

func (s *fakeCommentStore) ListByReview(ctx context.Context, reviewID uint, limit, offset int) ([]model.Comment, int64, error) {
	result := []model.Comment{}
	for _, cm := range s.comments {
		if cm.ReviewID == reviewID {
			result = append(result, *cm)
		}
	}
	return result, int64(len(result)), nil
}

func (s *fakeCommentStore) Get(ctx context.Context, reviewID, commentID uint) (*model.Comment, error) {
	if cm, ok := s.comments[commentID]; ok && cm.ReviewID == reviewID {
		return cm, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeCommentStore) Create(ctx context.Context, comment *model.Comment) error {
	comment.ID = s.nextID
	s.nextID++
	s.comments[comment.ID] = comment
	return nil
}

func (s *fakeCommentStore) Save(ctx context.Context, comment *model.Comment) error {
	s.comments[comment.ID] = comment
	return nil
}

func (s *fakeCommentStore) Delete(ctx context.Context, comment *model.Comment) error {
	delete(s.comments, comment.ID)
	return nil
}

// commentFixture 准备一条挂在 title 1 / review 1 下、作者为 7 的留言。
func commentFixture() (*Server, *fakeCommentStore) {
	reviews := newFakeReviewStore()
	reviews.reviews[1] = &model.Review{ID: 1, TitleID: 1, AuthorID: 5, Text: "r", Score: 5}
	reviews.nextID = 2

	comments := newFakeCommentStore()
	comments.comments[1] = &model.Comment{ID: 1, ReviewID: 1, AuthorID: 7, Text: "old"}
	comments.nextID = 2

	return newTestServer(singleTitleStore(), reviews, comments), comments
}

func TestCreateComment_RequiresAuth(t *testing.T) {
	s, comments := commentFixture()

	w := serveWithActor(http.MethodPost, "/titles/:id/reviews/:rid/comments", "/titles/1/reviews/1/comments",
		nil, s.handleCreateComment, commentRequest{Text: "hi"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = serveWithActor(http.MethodPost, "/titles/:id/reviews/:rid/comments", "/titles/1/reviews/1/comments",
		&testActor{id: 9, role: "user"}, s.handleCreateComment, commentRequest{Text: "hi"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(comments.comments) != 2 {
		t.Fatalf("expected comment to be stored")
	}
}

func TestCreateComment_ReviewMissing(t *testing.T) {
	s, _ := commentFixture()

	w := serveWithActor(http.MethodPost, "/titles/:id/reviews/:rid/comments", "/titles/1/reviews/42/comments",
		&testActor{id: 9, role: "user"}, s.handleCreateComment, commentRequest{Text: "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateComment_Permissions(t *testing.T) {
	cases := []struct {
		name  string
		actor *testActor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"other user", &testActor{id: 9, role: "user"}, http.StatusForbidden},
		{"author", &testActor{id: 7, role: "user"}, http.StatusOK},
		{"moderator", &testActor{id: 9, role: "moderator"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, comments := commentFixture()

			w := serveWithActor(http.MethodPatch, "/titles/:id/reviews/:rid/comments/:cid", "/titles/1/reviews/1/comments/1",
				tc.actor, s.handleUpdateComment, updateCommentRequest{Text: strPtr("new")})
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
			if tc.want == http.StatusOK && comments.comments[1].Text != "new" {
				t.Fatalf("expected text to be updated")
			}
		})
	}
}

func TestDeleteComment_Author(t *testing.T) {
	s, comments := commentFixture()

	w := serveWithActor(http.MethodDelete, "/titles/:id/reviews/:rid/comments/:cid", "/titles/1/reviews/1/comments/1",
		&testActor{id: 7, role: "user"}, s.handleDeleteComment, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(comments.comments) != 0 {
		t.Fatalf("expected comment to be removed")
	}
}

func TestListComments_Public(t *testing.T) {
	s, _ := commentFixture()

	w := serveWithActor(http.MethodGet, "/titles/:id/reviews/:rid/comments", "/titles/1/reviews/1/comments",
		nil, s.handleListComments, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
