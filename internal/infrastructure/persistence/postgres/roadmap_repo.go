package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// RoadmapRepository implements roadmap.Repository for PostgreSQL.
type RoadmapRepository struct {
	conn *Connection
}

// NewRoadmapRepository creates a new RoadmapRepository.
func NewRoadmapRepository(conn *Connection) *RoadmapRepository {
	return &RoadmapRepository{conn: conn}
}

const ideaColumns = `id, title, description, audience, status, created_by_uid, vote_count, created_at`

// Create inserts a validated idea.
func (r *RoadmapRepository) Create(ctx context.Context, idea *roadmap.Idea) error {
	_, err := r.conn.q().Exec(ctx, `
		INSERT INTO roadmap_ideas (`+ideaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		idea.ID,
		idea.Title,
		idea.Description,
		string(idea.Audience),
		string(idea.Status),
		idea.CreatedByUID.String(),
		idea.VoteCount,
		idea.CreatedAt.UTC(),
	)
	if err != nil {
		return mapError("roadmap", "Create", err)
	}
	return nil
}

// Get returns an idea by id.
func (r *RoadmapRepository) Get(ctx context.Context, id string) (*roadmap.Idea, error) {
	idea, err := scanIdea(r.conn.q().QueryRow(ctx, `SELECT `+ideaColumns+` FROM roadmap_ideas WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrIdeaNotFound
		}
		return nil, mapError("roadmap", "Get", err)
	}
	return idea, nil
}

// Toggle flips userID's vote on ideaID. The idea row is locked first so the
// vote record and vote_count change together; the count never drops below zero.
func (r *RoadmapRepository) Toggle(ctx context.Context, ideaID string, userID shared.UserID) (roadmap.ToggleResult, error) {
	res := roadmap.ToggleResult{IdeaID: ideaID}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, `SELECT vote_count FROM roadmap_ideas WHERE id = $1 FOR UPDATE`, ideaID).Scan(&current)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrIdeaNotFound
			}
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM idea_votes WHERE idea_id = $1 AND user_id = $2`, ideaID, userID.String())
		if err != nil {
			return fmt.Errorf("failed to remove vote: %w", err)
		}

		if tag.RowsAffected() > 0 {
			res.Upvoted = false
			return tx.QueryRow(ctx,
				`UPDATE roadmap_ideas SET vote_count = GREATEST(vote_count - 1, 0) WHERE id = $1 RETURNING vote_count`,
				ideaID,
			).Scan(&res.VoteCount)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO idea_votes (idea_id, user_id) VALUES ($1, $2)`, ideaID, userID.String()); err != nil {
			return fmt.Errorf("failed to add vote: %w", err)
		}
		res.Upvoted = true
		return tx.QueryRow(ctx,
			`UPDATE roadmap_ideas SET vote_count = vote_count + 1 WHERE id = $1 RETURNING vote_count`,
			ideaID,
		).Scan(&res.VoteCount)
	})
	if err != nil {
		return roadmap.ToggleResult{}, mapError("roadmap", "Toggle", err)
	}
	return res, nil
}

// List returns ideas ordered by vote count desc, then creation time desc.
func (r *RoadmapRepository) List(ctx context.Context, limit int) ([]*roadmap.Idea, error) {
	rows, err := r.conn.q().Query(ctx, `
		SELECT `+ideaColumns+`
		FROM roadmap_ideas
		ORDER BY vote_count DESC, created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, mapError("roadmap", "List", err)
	}
	defer rows.Close()

	var out []*roadmap.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		out = append(out, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("roadmap", "List", err)
	}
	return out, nil
}

// UpvotedBy returns the set of idea ids the user voted for.
func (r *RoadmapRepository) UpvotedBy(ctx context.Context, userID shared.UserID) (map[string]bool, error) {
	rows, err := r.conn.q().Query(ctx, `SELECT idea_id FROM idea_votes WHERE user_id = $1`, userID.String())
	if err != nil {
		return nil, mapError("roadmap", "UpvotedBy", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("roadmap", "UpvotedBy", err)
	}
	return out, nil
}

// Divergences lists ideas whose vote_count differs from the number of vote rows.
func (r *RoadmapRepository) Divergences(ctx context.Context) ([]roadmap.Divergence, error) {
	rows, err := r.conn.q().Query(ctx, `
		SELECT i.id, i.vote_count, COUNT(v.user_id)::int AS actual
		FROM roadmap_ideas i
		LEFT JOIN idea_votes v ON v.idea_id = i.id
		GROUP BY i.id, i.vote_count
		HAVING i.vote_count <> COUNT(v.user_id)
		ORDER BY i.id`)
	if err != nil {
		return nil, mapError("roadmap", "Divergences", err)
	}
	defer rows.Close()

	var out []roadmap.Divergence
	for rows.Next() {
		var d roadmap.Divergence
		if err := rows.Scan(&d.IdeaID, &d.VoteCount, &d.Actual); err != nil {
			return nil, fmt.Errorf("failed to scan divergence: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("roadmap", "Divergences", err)
	}
	return out, nil
}

func scanIdea(row pgx.Row) (*roadmap.Idea, error) {
	var (
		idea      roadmap.Idea
		audience  string
		status    string
		createdBy string
	)
	if err := row.Scan(
		&idea.ID,
		&idea.Title,
		&idea.Description,
		&audience,
		&status,
		&createdBy,
		&idea.VoteCount,
		&idea.CreatedAt,
	); err != nil {
		return nil, err
	}
	idea.Audience = roadmap.Audience(audience)
	idea.Status = roadmap.Status(status)
	idea.CreatedByUID = shared.UserID(createdBy)
	return &idea, nil
}

var _ roadmap.Repository = (*RoadmapRepository)(nil)
