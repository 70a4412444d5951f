package http

import (
	"context"

	"github.com/prepwise/progression-engine/internal/application/command"
	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// SessionRecorder saves a completed interview and rewards it.
type SessionRecorder interface {
	Handle(ctx context.Context, cmd command.RecordSessionCommand) (*command.RecordSessionResult, error)
}

// ProgressionReader builds the progression view of a user.
type ProgressionReader interface {
	Handle(ctx context.Context, q query.GetProgressionQuery) (*query.ProgressionDTO, error)
}

// QuotaChecker admits or denies a new interview and counts it.
type QuotaChecker interface {
	Handle(ctx context.Context, cmd command.CheckQuotaCommand) (*command.CheckQuotaResult, error)
}

// QuotaStatusReader reports quota usage without counting anything.
type QuotaStatusReader interface {
	Handle(ctx context.Context, q query.GetQuotaStatusQuery) (*query.QuotaStatusDTO, error)
}

// IdeaCreator validates and stores a roadmap idea.
type IdeaCreator interface {
	Handle(ctx context.Context, cmd command.CreateIdeaCommand) (*roadmap.Idea, error)
}

// VoteToggler flips a user's upvote on an idea.
type VoteToggler interface {
	Handle(ctx context.Context, cmd command.ToggleVoteCommand) (*roadmap.ToggleResult, error)
}

// FeedReader returns the ordered roadmap feed.
type FeedReader interface {
	Handle(ctx context.Context, q query.GetRoadmapFeedQuery) (*query.FeedDTO, error)
}

// Services groups the application operations exposed over HTTP. A nil
// service answers 501.
type Services struct {
	Sessions    SessionRecorder
	Progression ProgressionReader
	Quota       QuotaChecker
	QuotaStatus QuotaStatusReader
	CreateIdea  IdeaCreator
	Vote        VoteToggler
	Feed        FeedReader

	// LiveFeed backs the SSE stream; nil disables it.
	LiveFeed roadmap.LiveFeed
}
