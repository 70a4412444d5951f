package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/pkg/logger"
)

// FlagVoteAudit gates the vote-count audit job.
const FlagVoteAudit = "audit.vote_counts"

// AuditVoteCountsJob compares each idea's vote_count with its vote records and
// reports every mismatch. It never corrects the counter.
type AuditVoteCountsJob struct {
	ideas roadmap.Repository
	gate  FeatureGate
	log   *logger.Logger

	lastDivergences atomic.Value // []roadmap.Divergence
}

// NewAuditVoteCountsJob creates a new AuditVoteCountsJob. gate may be nil.
func NewAuditVoteCountsJob(ideas roadmap.Repository, gate FeatureGate, log *logger.Logger) *AuditVoteCountsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditVoteCountsJob{
		ideas: ideas,
		gate:  gate,
		log:   log.With(logger.Component("audit_vote_counts")),
	}
}

func (j *AuditVoteCountsJob) Name() string { return "audit_vote_counts" }

func (j *AuditVoteCountsJob) Description() string {
	return "Reports roadmap ideas whose vote counter disagrees with their vote records"
}

// Run logs one consistency error per diverging idea.
func (j *AuditVoteCountsJob) Run(ctx context.Context) error {
	if j.gate != nil && !j.gate.IsEnabled(FlagVoteAudit) {
		return nil
	}

	started := time.Now()
	divs, err := j.ideas.Divergences(ctx)
	if err != nil {
		return fmt.Errorf("failed to audit vote counts: %w", err)
	}
	j.lastDivergences.Store(divs)

	for _, d := range divs {
		j.log.Error("vote count diverged",
			logger.IdeaID(d.IdeaID),
			logger.Int("vote_count", d.VoteCount),
			logger.Int("vote_records", d.Actual),
			logger.Err(d.Err()),
		)
	}
	j.log.Info("vote count audit finished",
		logger.Int("divergences", len(divs)),
		logger.Latency(time.Since(started)),
	)
	return nil
}

// LastDivergences returns what the last run found.
func (j *AuditVoteCountsJob) LastDivergences() []roadmap.Divergence {
	if v := j.lastDivergences.Load(); v != nil {
		return v.([]roadmap.Divergence)
	}
	return nil
}
