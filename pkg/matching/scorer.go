// Package matching ranks worker candidates for a project.
//
// Ranking is a pure function of the candidate snapshot: no clock, no
// randomness. Repeating a match against unchanged pool and rotation state
// always yields the same order.
package matching

import (
	"math"
	"sort"
	"time"

	"atelier/pkg/constants"

	"github.com/shopspring/decimal"
)

// Weights composite score weights
type Weights struct {
	Skill        float64 `yaml:"skill"`
	Availability float64 `yaml:"availability"`
	Rating       float64 `yaml:"rating"`
	Fairness     float64 `yaml:"fairness"`
	BudgetFit    float64 `yaml:"budget_fit"`
}

// DefaultWeights returns the documented default weights
func DefaultWeights() Weights {
	return Weights{
		Skill:        0.35,
		Availability: 0.25,
		Rating:       0.20,
		Fairness:     0.15,
		BudgetFit:    0.05,
	}
}

// IsZero reports whether no weight is set
func (w Weights) IsZero() bool {
	return w.Skill == 0 && w.Availability == 0 && w.Rating == 0 && w.Fairness == 0 && w.BudgetFit == 0
}

// secondarySkillGrade is the skill component for a non-primary skill match
const secondarySkillGrade = 0.8

// maxRating upper bound of worker ratings
const maxRating = 5.0

// Candidate is one eligible worker plus its rotation ledger entry
type Candidate struct {
	WorkerID        string
	Skills          []string
	Rating          float64
	ActiveProjects  int
	MaxProjects     int
	PriceTier       constants.PriceTier
	LastAssignedAt  *time.Time // nil when never assigned for the skill
	AssignmentCount int64
}

// Scored candidate with its component breakdown
type Scored struct {
	Candidate
	Score        float64
	SkillPart    float64
	Availability float64
	RatingPart   float64
	Fairness     float64
	BudgetFit    float64
}

// Request describes what is being matched
type Request struct {
	Skill       constants.Skill
	BudgetHint  decimal.Decimal
	TierBudgets map[constants.PriceTier]decimal.Decimal // minimum budget that affords a tier
	Excluded    map[string]bool
}

// Eligible applies the hard filter: skill, free capacity, not excluded.
// Availability flag filtering happens at the query level.
func Eligible(c Candidate, req Request) bool {
	if req.Excluded[c.WorkerID] {
		return false
	}
	if c.MaxProjects <= 0 || c.ActiveProjects >= c.MaxProjects {
		return false
	}
	return skillGrade(c.Skills, req.Skill) > 0
}

// Rank filters and orders candidates best first
func Rank(candidates []Candidate, req Request, w Weights) []Scored {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Eligible(c, req) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	rot := rotationBounds(eligible)

	scored := make([]Scored, 0, len(eligible))
	for _, c := range eligible {
		s := Scored{Candidate: c}
		s.SkillPart = skillGrade(c.Skills, req.Skill)
		s.Availability = float64(c.MaxProjects-c.ActiveProjects) / float64(c.MaxProjects)
		s.RatingPart = clamp01(c.Rating / maxRating)
		s.Fairness = fairness(c.LastAssignedAt, rot)
		s.BudgetFit = budgetFit(c.PriceTier, req)
		s.Score = round9(w.Skill*s.SkillPart +
			w.Availability*s.Availability +
			w.Rating*s.RatingPart +
			w.Fairness*s.Fairness +
			w.BudgetFit*s.BudgetFit)
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return less(scored[i], scored[j])
	})
	return scored
}

// less orders by score desc, then least recently used, then fewer assignments, then id
func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
		return true
	case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt != nil && b.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
		return a.LastAssignedAt.Before(*b.LastAssignedAt)
	}
	if a.AssignmentCount != b.AssignmentCount {
		return a.AssignmentCount < b.AssignmentCount
	}
	return a.WorkerID < b.WorkerID
}

func skillGrade(skills []string, want constants.Skill) float64 {
	for i, s := range skills {
		if s == string(want) {
			if i == 0 {
				return 1
			}
			return secondarySkillGrade
		}
	}
	return 0
}

// rotation summarizes the ledger entries of the eligible set
type rotation struct {
	oldest, newest time.Time
	assigned       bool // some candidate has a ledger entry
	fresh          bool // some candidate was never assigned
}

func rotationBounds(cs []Candidate) rotation {
	var r rotation
	for _, c := range cs {
		if c.LastAssignedAt == nil {
			r.fresh = true
			continue
		}
		t := *c.LastAssignedAt
		if !r.assigned {
			r.oldest, r.newest, r.assigned = t, t, true
			continue
		}
		if t.Before(r.oldest) {
			r.oldest = t
		}
		if t.After(r.newest) {
			r.newest = t
		}
	}
	return r
}

// fairness is 1 for a never-assigned worker and falls to 0 for the most recently
// assigned one. When never-assigned workers compete, assigned ones stay within
// [0, 0.5] so that a ledger entry always costs something.
func fairness(last *time.Time, r rotation) float64 {
	if last == nil {
		return 1
	}
	span := r.newest.Sub(r.oldest)
	age := 1.0
	if span > 0 {
		age = float64(r.newest.Sub(*last)) / float64(span)
	} else if r.fresh {
		age = 0
	}
	if r.fresh {
		return clamp01(age / 2)
	}
	return clamp01(age)
}

func budgetFit(tier constants.PriceTier, req Request) float64 {
	if req.BudgetHint.IsZero() || len(req.TierBudgets) == 0 {
		return 1
	}
	floor, ok := req.TierBudgets[tier]
	if !ok || req.BudgetHint.GreaterThanOrEqual(floor) {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
