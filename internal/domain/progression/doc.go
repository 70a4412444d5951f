// Package progression holds the rule side of the progression engine.
//
// Everything here is pure: no I/O, no clocks read implicitly, no mutable globals.
//
//   - BuildStats folds a session history into a UserStats snapshot.
//   - The achievement catalog and the rank table are compiled-in and immutable.
//   - Evaluate derives unlocked achievements, achievement XP, level and rank.
//   - ApplySession computes the persisted delta of one completed session.
//
// Two XP totals exist on purpose. State.ExperiencePoints is the persisted ledger,
// advanced by ApplySession (session XP plus achievement XP). Evaluation.TotalXP is
// recomputed from the unlocked badge set alone. They are reported side by side and
// never reconciled into one number.
//
// Achievement conditions must be monotonic: if a condition holds for some stats,
// it holds for any stats that are greater or equal in every field.
package progression
