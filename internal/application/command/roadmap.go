package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE IDEA COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateIdeaCommand contains a new roadmap idea.
type CreateIdeaCommand struct {
	Title        string
	Description  string
	Audience     string
	Status       string
	CreatedByUID string
}

// CreateIdeaHandler handles the CreateIdeaCommand.
type CreateIdeaHandler struct {
	repo           roadmap.Repository
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
}

// NewCreateIdeaHandler creates a new CreateIdeaHandler.
func NewCreateIdeaHandler(repo roadmap.Repository, eventPublisher shared.EventPublisher, clock timeutil.Clock) *CreateIdeaHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &CreateIdeaHandler{repo: repo, eventPublisher: eventPublisher, clock: clock}
}

// Handle validates and stores the idea.
func (h *CreateIdeaHandler) Handle(ctx context.Context, cmd CreateIdeaCommand) (*roadmap.Idea, error) {
	now := h.clock.Now()
	idea, err := roadmap.NewIdea(roadmap.NewIdeaInput{
		Title:        cmd.Title,
		Description:  cmd.Description,
		Audience:     cmd.Audience,
		Status:       cmd.Status,
		CreatedByUID: cmd.CreatedByUID,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("create_idea: validation failed: %w", err)
	}

	if err := h.repo.Create(ctx, idea); err != nil {
		return nil, fmt.Errorf("create_idea: failed to save idea: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewIdeaCreatedEvent(idea.ID, idea.Title, idea.CreatedByUID.String(), now))
	return idea, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLE VOTE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ToggleVoteCommand flips one user's vote on one idea.
type ToggleVoteCommand struct {
	IdeaID string
	UserID string
}

// Validate validates the command.
func (c ToggleVoteCommand) Validate() error {
	if strings.TrimSpace(c.IdeaID) == "" {
		return shared.ValidationError("roadmap", "Toggle", "idea_id", "is required")
	}
	_, err := shared.NewUserID(c.UserID)
	return err
}

// FeedInvalidator drops cached copies of the roadmap feed.
type FeedInvalidator interface {
	InvalidateFeed(ctx context.Context) error
}

// ToggleVoteHandler handles the ToggleVoteCommand.
type ToggleVoteHandler struct {
	repo           roadmap.Repository
	eventPublisher shared.EventPublisher
	feed           FeedInvalidator
	retrier        *retry.Retrier
	clock          timeutil.Clock
	log            *logger.Logger
}

// NewToggleVoteHandler creates a new ToggleVoteHandler.
func NewToggleVoteHandler(
	repo roadmap.Repository,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *ToggleVoteHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ToggleVoteHandler{
		repo:           repo,
		eventPublisher: eventPublisher,
		clock:          clock,
		log:            log.With(logger.Component("vote_ledger")),
	}
}

// WithContentionRetry makes Handle retry the toggle under r when it fails on
// contention. Without it contention is returned to the caller.
func (h *ToggleVoteHandler) WithContentionRetry(r *retry.Retrier) *ToggleVoteHandler {
	h.retrier = r
	return h
}

// WithFeedCache drops the cached feed as soon as a toggle commits, so the
// viewer's own upvote is never shown next to the previous count.
func (h *ToggleVoteHandler) WithFeedCache(feed FeedInvalidator) *ToggleVoteHandler {
	h.feed = feed
	return h
}

// Handle runs the toggle transaction.
func (h *ToggleVoteHandler) Handle(ctx context.Context, cmd ToggleVoteCommand) (*roadmap.ToggleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("toggle_vote: validation failed: %w", err)
	}
	userID := shared.UserID(strings.TrimSpace(cmd.UserID))

	res, err := runTx(ctx, h.retrier, func(ctx context.Context) (roadmap.ToggleResult, error) {
		return h.repo.Toggle(ctx, cmd.IdeaID, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("toggle_vote: %w", err)
	}

	if h.feed != nil {
		if err := h.feed.InvalidateFeed(ctx); err != nil {
			h.log.Warn("failed to invalidate feed cache", logger.IdeaID(res.IdeaID), logger.Err(err))
		}
	}

	h.log.Debug("vote toggled",
		logger.IdeaID(res.IdeaID),
		logger.UserID(userID.String()),
		logger.Int("vote_count", res.VoteCount),
		logger.Bool("upvoted", res.Upvoted),
	)
	_ = h.eventPublisher.Publish(shared.NewVoteToggledEvent(res.IdeaID, userID.String(), res.VoteCount, res.Upvoted, h.clock.Now()))
	return &res, nil
}
