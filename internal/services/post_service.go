package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSlugAttempts = 20

// PostService owns posts and the counters other records keep on them.
type PostService struct {
	posts         repositories.PostRepository
	categories    repositories.CategoryRepository
	comments      repositories.CommentRepository
	reviews       repositories.ReviewRepository
	likes         repositories.LikeRepository
	notifications repositories.NotificationRepository
	log           *zap.Logger
}

// NewPostService creates a new PostService
func NewPostService(
	posts repositories.PostRepository,
	categories repositories.CategoryRepository,
	comments repositories.CommentRepository,
	reviews repositories.ReviewRepository,
	likes repositories.LikeRepository,
	notifications repositories.NotificationRepository,
	log *zap.Logger,
) *PostService {
	return &PostService{
		posts:         posts,
		categories:    categories,
		comments:      comments,
		reviews:       reviews,
		likes:         likes,
		notifications: notifications,
		log:           log.Named("posts"),
	}
}

func canEdit(user *models.User, post *models.Post) bool {
	return user.IsAdmin() || user.Role == models.RoleModerator || post.Author.ID == user.ID
}

// uniqueSlug derives a slug from title, appending -2, -3, ... on collision.
func (s *PostService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := models.Slugify(title)
	if base == "" {
		base = "post"
	}
	slug := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.posts.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

// Create stores a post by author. Posts by non-admins wait for approval
// unless saved as drafts.
func (s *PostService) Create(ctx context.Context, author *models.User, req models.CreatePostRequest) (*models.Post, error) {
	slug, err := s.uniqueSlug(ctx, req.Title)
	if err != nil {
		return nil, err
	}

	status := req.Status
	switch {
	case author.IsAdmin():
		if status == "" {
			status = models.PostPublished
		}
	case status != models.PostDraft:
		status = models.PostPending
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC()
	post := &models.Post{
		ID:         uuid.NewString(),
		Slug:       slug,
		Title:      req.Title,
		Excerpt:    req.Excerpt,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Author:     author.ToCompact(),
		Category:   req.Category,
		Tags:       tags,
		Status:     status,
		ReadTime:   models.ReadTime(req.Content),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	s.bumpCategory(ctx, post.Category, 1)
	return post, nil
}

// Update edits a post. The slug stays stable so links keep working.
func (s *PostService) Update(ctx context.Context, user *models.User, id string, req models.UpdatePostRequest) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(user, post) {
		return nil, ErrForbidden
	}

	oldCategory := post.Category
	if req.Title != "" {
		post.Title = req.Title
	}
	if req.Excerpt != "" {
		post.Excerpt = req.Excerpt
	}
	if req.Content != "" {
		post.Content = req.Content
		post.ReadTime = models.ReadTime(req.Content)
	}
	if req.CoverImage != "" {
		post.CoverImage = req.CoverImage
	}
	if req.Category != "" {
		post.Category = req.Category
	}
	if req.Tags != nil {
		post.Tags = req.Tags
	}
	post.UpdatedAt = time.Now().UTC()

	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	if oldCategory != post.Category {
		s.bumpCategory(ctx, oldCategory, -1)
		s.bumpCategory(ctx, post.Category, 1)
	}
	return post, nil
}

// Delete removes a post with its comments, reviews and likes.
func (s *PostService) Delete(ctx context.Context, user *models.User, id string) error {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(user, post) {
		return ErrForbidden
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	if err := s.comments.DeleteByPostID(ctx, id); err != nil {
		s.log.Error("deleting comments failed", zap.String("post_id", id), zap.Error(err))
	}
	if err := s.reviews.DeleteByPostID(ctx, id); err != nil {
		s.log.Error("deleting reviews failed", zap.String("post_id", id), zap.Error(err))
	}
	if err := s.likes.DeleteByPostID(ctx, id); err != nil {
		s.log.Error("deleting likes failed", zap.String("post_id", id), zap.Error(err))
	}
	s.bumpCategory(ctx, post.Category, -1)
	return nil
}

// GetBySlug returns a post and counts the view. Unpublished posts are only
// visible to their author and to staff.
func (s *PostService) GetBySlug(ctx context.Context, slug string, viewer *models.User) (*models.Post, error) {
	post, err := s.posts.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostPublished && (viewer == nil || !canEdit(viewer, post)) {
		return nil, repositories.ErrPostNotFound
	}
	if err := s.posts.IncrementViews(ctx, post.ID); err != nil {
		s.log.Warn("counting view failed", zap.String("post_id", post.ID), zap.Error(err))
	} else {
		post.Views++
	}
	return post, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	return s.posts.GetPostByID(ctx, id)
}

func (s *PostService) List(ctx context.Context, filter models.PostFilter, page, limit int64) ([]models.Post, int64, error) {
	return s.posts.ListPosts(ctx, filter, (page-1)*limit, limit)
}

// SetStatus moderates a post and tells the author when it goes live.
func (s *PostService) SetStatus(ctx context.Context, moderator *models.User, id string, status models.PostStatus) error {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.posts.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status == models.PostPublished && post.Status != models.PostPublished {
		n := &models.Notification{
			Type:        models.NotificationPostApproved,
			ActorID:     moderator.ID,
			RecipientID: post.Author.ID,
			TargetID:    post.ID,
			TargetType:  "post",
			Message:     fmt.Sprintf("Your post %q was published", post.Title),
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			s.log.Warn("creating notification failed", zap.String("post_id", id), zap.Error(err))
		}
	}
	return nil
}

// ToggleLike likes the post, or removes the like if userID already liked it.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (bool, int64, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return false, 0, err
	}
	liked, err := s.likes.HasUserLikedPost(ctx, postID, userID)
	if err != nil {
		return false, 0, err
	}

	delta := 1
	if liked {
		if err := s.likes.DeleteLike(ctx, postID, userID); err != nil {
			return false, 0, err
		}
		delta = -1
	} else if err := s.likes.CreateLike(ctx, &models.Like{PostID: postID, UserID: userID}); err != nil {
		if !errors.Is(err, repositories.ErrAlreadyLiked) {
			return false, 0, err
		}
		delta = 0
	}
	if delta != 0 {
		if err := s.posts.IncrementLikesCount(ctx, postID, delta); err != nil {
			s.log.Warn("updating like count failed", zap.String("post_id", postID), zap.Error(err))
		}
	}

	count, err := s.likes.GetLikesCountByPostID(ctx, postID)
	if err != nil {
		return false, 0, err
	}
	return !liked, count, nil
}

// AddComment stores a comment by user on postID.
func (s *PostService) AddComment(ctx context.Context, user *models.User, postID, content string) (*models.Comment, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	comment := &models.Comment{
		PostID:     postID,
		UserID:     user.ID,
		UserName:   user.Name,
		UserAvatar: user.Avatar,
		Content:    content,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	if err := s.posts.IncrementCommentsCount(ctx, postID, 1); err != nil {
		s.log.Warn("updating comment count failed", zap.String("post_id", postID), zap.Error(err))
	}
	return comment, nil
}

func (s *PostService) Comments(ctx context.Context, postID string, skip, limit int) ([]models.Comment, error) {
	return s.comments.GetCommentsByPostID(ctx, postID, skip, limit)
}

// UpdateComment edits a comment. Only its author may edit it.
func (s *PostService) UpdateComment(ctx context.Context, user *models.User, id uint, content string) (*models.Comment, error) {
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != user.ID {
		return nil, ErrForbidden
	}
	comment.Content = content
	if err := s.comments.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment. Its author and staff may delete it.
func (s *PostService) DeleteComment(ctx context.Context, user *models.User, id uint) error {
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != user.ID && !user.IsAdmin() && user.Role != models.RoleModerator {
		return ErrForbidden
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return err
	}
	if err := s.posts.IncrementCommentsCount(ctx, comment.PostID, -1); err != nil {
		s.log.Warn("updating comment count failed", zap.String("post_id", comment.PostID), zap.Error(err))
	}
	return nil
}

// AddReview stores user's single rated review of postID.
func (s *PostService) AddReview(ctx context.Context, user *models.User, postID string, req models.CreateReviewRequest) (*models.Review, error) {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	review := &models.Review{
		PostID:     postID,
		UserID:     user.ID,
		UserName:   user.Name,
		UserAvatar: user.Avatar,
		Rating:     req.Rating,
		Content:    req.Content,
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// Reviews returns the reviews of postID with their average rating.
func (s *PostService) Reviews(ctx context.Context, postID string) ([]models.Review, *repositories.RatingSummary, error) {
	reviews, err := s.reviews.GetReviewsByPostID(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	summary, err := s.reviews.GetRatingSummary(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	return reviews, summary, nil
}

func (s *PostService) bumpCategory(ctx context.Context, name string, delta int) {
	if name == "" {
		return
	}
	if err := s.categories.IncrementCount(ctx, name, delta); err != nil && !errors.Is(err, repositories.ErrCategoryNotFound) {
		s.log.Warn("updating category count failed", zap.String("category", name), zap.Error(err))
	}
}
