package service

import (
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
)

// RampPhase identifies where a group sits in its initial ramp-up window.
type RampPhase int

const (
	RampNone RampPhase = iota
	RampWeek1
	RampWeek2
)

func (p RampPhase) String() string {
	switch p {
	case RampWeek1:
		return "week1"
	case RampWeek2:
		return "week2"
	default:
		return "none"
	}
}

// RampUpPolicy throttles newly created groups. Fresh groups get stricter
// intervals and lower post counts until InitialRampUntil passes, after which
// the normal limits apply.
type RampUpPolicy struct {
	cfg config.SchedulingConfig
}

func NewRampUpPolicy(cfg config.SchedulingConfig) *RampUpPolicy {
	return &RampUpPolicy{cfg: cfg}
}

// Phase splits the ramp window into two equal halves. A zero InitialRampUntil
// means the group predates ramp tracking and is treated as ramped.
func (p *RampUpPolicy) Phase(state *models.GroupState, now time.Time) RampPhase {
	if state.InitialRampUntil.IsZero() || !now.Before(state.InitialRampUntil) {
		return RampNone
	}

	total := state.InitialRampUntil.Sub(state.CreatedAt)
	if total <= 0 {
		return RampNone
	}

	week1End := state.CreatedAt.Add(total / 2)
	if now.Before(week1End) {
		return RampWeek1
	}
	return RampWeek2
}

// Check admits or rejects a post under the group's current ramp phase. Both
// the phase post cap over the trailing week and the phase minimum interval
// must hold.
func (p *RampUpPolicy) Check(state *models.GroupState, now time.Time) models.Admission {
	phase := p.Phase(state, now)
	if phase == RampNone {
		return models.Admission{Allowed: true}
	}

	maxPosts := p.cfg.RampWeek1MaxPosts
	minInterval := time.Duration(p.cfg.RampWeek1MinIntervalHours) * time.Hour
	if phase == RampWeek2 {
		maxPosts = p.cfg.RampWeek2MaxPosts
		minInterval = time.Duration(p.cfg.RampWeek2MinIntervalHours) * time.Hour
	}

	if last := state.LastPostAt(); !last.IsZero() && now.Sub(last) < minInterval {
		return models.Admission{Allowed: false, Reason: models.ReasonRampUp}
	}
	if state.PostsWithin(7*24*time.Hour, now) >= maxPosts {
		return models.Admission{Allowed: false, Reason: models.ReasonRampUp}
	}

	return models.Admission{Allowed: true}
}
