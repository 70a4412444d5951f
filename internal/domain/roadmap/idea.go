// Package roadmap models public product ideas and the votes cast on them.
package roadmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// Audience is who an idea is aimed at.
type Audience string

const (
	AudienceCandidate Audience = "candidate"
	AudienceRecruiter Audience = "recruiter"
)

// Status is the delivery state of an idea.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
)

// Idea is a roadmap entry. VoteCount mirrors the number of vote records and
// only changes inside the vote toggle transaction.
type Idea struct {
	ID           string
	Title        string
	Description  string
	Audience     Audience
	Status       Status
	CreatedByUID shared.UserID
	VoteCount    int
	CreatedAt    time.Time
}

// NewIdeaInput is the user-supplied part of an idea.
type NewIdeaInput struct {
	Title        string `validate:"min=3,max=80"`
	Description  string `validate:"min=10,max=2000"`
	Audience     string `validate:"oneof=candidate recruiter"`
	Status       string `validate:"oneof=planned in_progress"`
	CreatedByUID string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewIdea trims and validates in, then builds an idea with zero votes.
// Lengths are counted in runes.
func NewIdea(in NewIdeaInput, now time.Time) (*Idea, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Audience = strings.TrimSpace(in.Audience)
	in.Status = strings.TrimSpace(in.Status)
	in.CreatedByUID = strings.TrimSpace(in.CreatedByUID)

	if err := validate.Struct(in); err != nil {
		return nil, translate(err)
	}

	return &Idea{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Audience:     Audience(in.Audience),
		Status:       Status(in.Status),
		CreatedByUID: shared.UserID(in.CreatedByUID),
		CreatedAt:    now.UTC(),
	}, nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.WrapError("roadmap", "NewIdea", shared.ErrValidation, "invalid idea", err)
	}
	fe := verrs[0]
	field := fieldName(fe.Field())

	var reason string
	switch fe.Tag() {
	case "min":
		reason = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "required":
		reason = "is required"
	default:
		reason = "is invalid"
	}
	return shared.ValidationError("roadmap", "NewIdea", field, reason)
}

func fieldName(f string) string {
	switch f {
	case "CreatedByUID":
		return "created_by_uid"
	default:
		return strings.ToLower(f)
	}
}

// ToggleResult is the outcome of one vote toggle.
type ToggleResult struct {
	IdeaID    string `json:"idea_id"`
	VoteCount int    `json:"vote_count"`
	Upvoted   bool   `json:"upvoted"`
}

// Feed is the ordered idea list plus the viewer's upvotes.
type Feed struct {
	Ideas   []*Idea
	Upvoted map[string]bool
}

// Divergence is an idea whose cached counter disagrees with its vote records.
type Divergence struct {
	IdeaID    string
	VoteCount int
	Actual    int
}

// Err reports the divergence as a consistency error.
func (d Divergence) Err() error {
	return shared.NewDomainError("roadmap", "AuditVoteCounts", shared.ErrConsistency,
		fmt.Sprintf("idea %s: vote_count=%d but %d vote records", d.IdeaID, d.VoteCount, d.Actual))
}

// Repository stores ideas and votes.
type Repository interface {
	Create(ctx context.Context, idea *Idea) error

	// Get returns ErrIdeaNotFound when the idea is missing.
	Get(ctx context.Context, id string) (*Idea, error)

	// Toggle flips the user's vote on the idea in one transaction.
	Toggle(ctx context.Context, ideaID string, userID shared.UserID) (ToggleResult, error)

	// List returns ideas ordered by vote count desc, then creation time desc.
	List(ctx context.Context, limit int) ([]*Idea, error)

	// UpvotedBy returns the ids of every idea the user has voted for.
	UpvotedBy(ctx context.Context, userID shared.UserID) (map[string]bool, error)

	// Divergences lists ideas whose vote_count differs from their vote records.
	Divergences(ctx context.Context) ([]Divergence, error)
}

// VoteUpdate is broadcast to live feed subscribers after a toggle commits.
// It carries no viewer state.
type VoteUpdate struct {
	IdeaID    string    `json:"idea_id"`
	VoteCount int       `json:"vote_count"`
	At        time.Time `json:"at"`
}

// LiveFeed fans vote updates out to every connected viewer.
type LiveFeed interface {
	Publish(ctx context.Context, u VoteUpdate) error

	// Subscribe streams updates until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context) (<-chan VoteUpdate, error)
}
