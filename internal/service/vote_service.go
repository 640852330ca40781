package service

import (
	"context"
	"strconv"
	"strings"

	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/observability"
	"qaforum/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VotePolicy decides what a resubmitted vote stores.
type VotePolicy string

const (
	// VoteToggle stores 0 when the user resubmits their current value.
	VoteToggle VotePolicy = "toggle"
	// VoteOverwrite always stores the requested value.
	VoteOverwrite VotePolicy = "overwrite"
)

// ParseVotePolicy defaults to VoteToggle for unknown input.
func ParseVotePolicy(s string) VotePolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(VoteOverwrite)) {
		return VoteOverwrite
	}
	return VoteToggle
}

func (p VotePolicy) resolver() repository.VoteResolver {
	if p == VoteOverwrite {
		return func(_ *int, requested int) int { return requested }
	}
	return func(existing *int, requested int) int {
		if existing != nil && *existing == requested {
			return models.VoteNeutral
		}
		return requested
	}
}

type VoteService struct {
	votes     repository.VoteRepository
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	pub       notifications.Publisher
	policy    VotePolicy
}

type CastVoteInput struct {
	UserID     uint
	QuestionID *uint
	AnswerID   *uint
	VoteType   int
}

// VoteResult is returned to the voter and broadcast to the question group.
type VoteResult struct {
	QuestionID uint  `json:"question_id"`
	AnswerID   *uint `json:"answer_id,omitempty"`
	VoteType   int   `json:"vote_type"`
	Score      int   `json:"score"`
}

type voteUpdate struct {
	QuestionID uint  `json:"question_id"`
	AnswerID   *uint `json:"answer_id,omitempty"`
	Score      int   `json:"score"`
}

func NewVoteService(
	votes repository.VoteRepository,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	pub notifications.Publisher,
	policy VotePolicy,
) *VoteService {
	if policy == "" {
		policy = VoteToggle
	}
	return &VoteService{votes: votes, questions: questions, answers: answers, pub: pub, policy: policy}
}

// Policy returns the configured vote policy.
func (s *VoteService) Policy() VotePolicy { return s.policy }

func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (_ *VoteResult, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "vote.cast")
	defer span.End(&err)

	target := models.Target{QuestionID: in.QuestionID, AnswerID: in.AnswerID}
	if !target.Valid() {
		return nil, models.NewValidationError("Must provide either questionId or answerId.")
	}
	if !models.ValidVoteType(in.VoteType) {
		return nil, models.NewValidationError("Vote type must be -1, 0 or 1.")
	}

	var questionID uint
	if target.IsQuestion() {
		q, err := s.questions.GetByID(ctx, target.ID())
		if err != nil {
			return nil, err
		}
		questionID = q.ID
	} else {
		a, err := s.answers.GetByID(ctx, target.ID())
		if err != nil {
			return nil, err
		}
		questionID = a.QuestionID
	}
	span.AddAttributes(
		attribute.String("vote.target", target.Kind()),
		attribute.Int64("vote.question_id", int64(questionID)),
	)

	stored, score, err := s.votes.Cast(ctx, in.UserID, target, in.VoteType, s.policy.resolver())
	if err != nil {
		return nil, err
	}
	observability.VotesCastTotal.WithLabelValues(target.Kind(), strconv.Itoa(stored)).Inc()

	result := &VoteResult{QuestionID: questionID, VoteType: stored, Score: score}
	if !target.IsQuestion() {
		id := target.ID()
		result.AnswerID = &id
	}
	publish(ctx, s.pub, notifications.QuestionGroup(questionID), notifications.EventVoteUpdate, voteUpdate{
		QuestionID: questionID,
		AnswerID:   result.AnswerID,
		Score:      score,
	})
	return result, nil
}
