package resolver

import (
	"github.com/manual-hunter/backend/internal/storage/models"
)

// phase enumerates the orchestrator states. Escalated and done are terminal;
// everything else performs one unit of work and yields the next state.
type phase int

const (
	phaseCacheCheck phase = iota
	phaseSearching
	phaseJudging
	phaseCaching
	phaseEscalating
	phaseDone
	phaseEscalated
)

func (p phase) String() string {
	switch p {
	case phaseCacheCheck:
		return "cache_check"
	case phaseSearching:
		return "searching"
	case phaseJudging:
		return "judging"
	case phaseCaching:
		return "caching"
	case phaseEscalating:
		return "escalating"
	case phaseDone:
		return "done"
	case phaseEscalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// state is the explicit value the transition step operates on. It carries
// everything the terminal result needs so the machine can be driven (and
// tested) without hidden fields.
type state struct {
	phase     phase
	tierIndex int

	candidate  models.SearchCandidate
	validation models.ValidationResult

	attempted      []models.AttemptedCandidate
	bestConfidence int

	record       *models.CacheRecord
	fromCache    bool
	cacheWarning string
}

func (s state) terminal() bool {
	return s.phase == phaseDone || s.phase == phaseEscalated
}
