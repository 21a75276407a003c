package router

import (
	"time"

	"github.com/shaiso/dispatch-engine/internal/domain"
)

// Dispatch reasons.
const (
	ReasonExactMatch     = "exact_match"
	ReasonBestCapability = "best_capability"
)

// Confidence values paired with the reasons above.
const (
	ConfidenceExactMatch     = 1.0
	ConfidenceBestCapability = 0.8
)

// ObservationWindow is the baseline window against which a session's
// uptime ratio is computed for the availability scoring component.
// A session connected for this long or longer scores 100.
const ObservationWindow = 24 * time.Hour

// weight of each scoring component; must sum to 1.0.
const (
	weightCapability  = 0.40
	weightInverseLoad = 0.30
	weightPerformance = 0.20
	weightAvailability = 0.10
)

// newSessionPerformanceScore is used when a session has not yet completed
// a job (avgResponseTimeMs == 0) "50 for new sessions".
const newSessionPerformanceScore = 50.0

// Score computes a session's dispatch suitability for job in [0, 100],
// weighted four-component formula.
func Score(session *domain.ExtensionSession, job *domain.Job, now time.Time) float64 {
	return weightCapability*capabilityComponent(session, job) +
		weightInverseLoad*inverseLoadComponent(session) +
		weightPerformance*performanceComponent(session) +
		weightAvailability*availabilityComponent(session, now)
}

func capabilityComponent(session *domain.ExtensionSession, job *domain.Job) float64 {
	required := job.Payload.RequiredCapabilities
	if len(required) == 0 {
		return scoreExactVersion
	}
	var sum float64
	for _, req := range required {
		have, ok := session.HasCapability(req.Name)
		if !ok {
			sum += scoreIncompatible
			continue
		}
		sum += capabilityScore(req.Version, have.Version)
	}
	return sum / float64(len(required))
}

func inverseLoadComponent(session *domain.ExtensionSession) float64 {
	load := float64(session.InFlightCount)
	if load > 100 {
		load = 100
	}
	return 100 - load
}

func performanceComponent(session *domain.ExtensionSession) float64 {
	if session.SuccessCount == 0 || session.AvgResponseTimeMs <= 0 {
		return newSessionPerformanceScore
	}
	score := 10000 / session.AvgResponseTimeMs
	if score > 100 {
		score = 100
	}
	return score
}

func availabilityComponent(session *domain.ExtensionSession, now time.Time) float64 {
	return session.UptimeRatio(now, ObservationWindow) * 100
}

// Select implements the Router's final selection step: an exact
// targetExtensionId pin wins outright if that session is dispatch-eligible;
// otherwise the highest-scoring connected session wins, ties broken by
// smaller inFlightCount then earlier connectedAt. Returns ok=false if no
// session is eligible.
func Select(candidates []*domain.ExtensionSession, job *domain.Job, now time.Time) (session *domain.ExtensionSession, reason string, confidence float64, ok bool) {
	if target := job.Payload.TargetExtensionID; target != "" {
		for _, c := range candidates {
			if c.ID == target && c.Status.CanDispatch() {
				return c, ReasonExactMatch, ConfidenceExactMatch, true
			}
		}
		return nil, "", 0, false
	}

	var best *domain.ExtensionSession
	var bestScore float64 = -1

	for _, c := range candidates {
		if !c.Status.CanDispatch() {
			continue
		}
		s := Score(c, job, now)
		switch {
		case s > bestScore:
			best, bestScore = c, s
		case s == bestScore && best != nil:
			best = breakTie(best, c)
		}
	}

	if best == nil {
		return nil, "", 0, false
	}
	return best, ReasonBestCapability, ConfidenceBestCapability, true
}

// breakTie applies tie-break order: smaller inFlightCount,
// then earlier connectedAt.
func breakTie(a, b *domain.ExtensionSession) *domain.ExtensionSession {
	if a.InFlightCount != b.InFlightCount {
		if a.InFlightCount < b.InFlightCount {
			return a
		}
		return b
	}
	if a.ConnectedAt.Before(b.ConnectedAt) {
		return a
	}
	return b
}
