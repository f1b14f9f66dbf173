package repositories

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user with this email already registered")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrFriendRequestExists   = errors.New("a pending friend request already exists between these users")
	ErrAlreadyFriends        = errors.New("users are already friends")
	ErrCallNotFound          = errors.New("call not found")
	ErrInvalidTransition     = errors.New("call status transition not allowed")
	ErrPostNotFound          = errors.New("post not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryExists        = errors.New("category already exists")
	ErrCommentNotFound       = errors.New("comment not found")
	ErrAlreadyReviewed       = errors.New("post already reviewed by this user")
	ErrAlreadyLiked          = errors.New("post already liked")
	ErrLikeNotFound          = errors.New("like not found")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrPollNotFound          = errors.New("poll not found")
	ErrPollClosed            = errors.New("poll is closed")
	ErrOptionNotFound        = errors.New("poll option not found")
	ErrAlreadyVoted          = errors.New("user already voted on this poll")
	ErrVoteNotApplied        = errors.New("poll changed while voting, try again")
	ErrLiveLinkNotFound      = errors.New("live link not found")
	ErrListingNotFound       = errors.New("listing not found")
	ErrBuyerRequestNotFound  = errors.New("buyer request not found")
)
