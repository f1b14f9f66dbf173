package services

import (
	"context"
	"time"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PollService struct {
	polls  repositories.PollRepository
	events events.Publisher
	log    *zap.Logger
}

// NewPollService creates a new PollService
func NewPollService(polls repositories.PollRepository, publisher events.Publisher, log *zap.Logger) *PollService {
	return &PollService{polls: polls, events: publisher, log: log.Named("polls")}
}

// Create stores a new active poll with zeroed counters.
func (s *PollService) Create(ctx context.Context, req models.CreatePollRequest) (*models.Poll, error) {
	now := time.Now().UTC()
	poll := &models.Poll{
		ID:            uuid.NewString(),
		Question:      req.Question,
		Description:   req.Description,
		QuestionImage: req.QuestionImage,
		Category:      req.Category,
		Options:       make([]models.PollOption, 0, len(req.Options)),
		VotedUserIDs:  []string{},
		Status:        models.PollActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, o := range req.Options {
		poll.Options = append(poll.Options, models.PollOption{ID: uuid.NewString(), Text: o.Text, Image: o.Image})
	}
	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

func (s *PollService) Get(ctx context.Context, id string) (*models.Poll, error) {
	return s.polls.GetPollByID(ctx, id)
}

func (s *PollService) List(ctx context.Context, status models.PollStatus, skip, limit int64) ([]models.Poll, error) {
	return s.polls.ListPolls(ctx, status, skip, limit)
}

func (s *PollService) Update(ctx context.Context, id string, req models.UpdatePollRequest) (*models.Poll, error) {
	poll, err := s.polls.GetPollByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Question != "" {
		poll.Question = req.Question
	}
	poll.Description = req.Description
	poll.QuestionImage = req.QuestionImage
	if req.Category != "" {
		poll.Category = req.Category
	}
	if err := s.polls.UpdatePoll(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

func (s *PollService) SetStatus(ctx context.Context, id string, status models.PollStatus) error {
	return s.polls.UpdateStatus(ctx, id, status)
}

func (s *PollService) Delete(ctx context.Context, id string) error {
	return s.polls.DeletePoll(ctx, id)
}

// Vote counts userID's single vote for optionID.
func (s *PollService) Vote(ctx context.Context, userID, pollID, optionID string) (*models.Poll, error) {
	poll, err := s.polls.Vote(ctx, pollID, optionID, userID)
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"poll_id": pollID, "option_id": optionID}
	if err := s.events.Publish(ctx, events.PollVoted, pollID, payload); err != nil {
		s.log.Warn("publishing event failed", zap.String("poll_id", pollID), zap.Error(err))
	}
	return poll, nil
}
