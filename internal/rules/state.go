package rules

import (
	"time"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal/config"
)

const (
	// an acknowledgement on the previous day or today reverts the rule
	freshAckDays = 1
	// after an acknowledgement the rule stays in INFORM for a week
	reentryCooldownDays = 7
)

type modeInput struct {
	rule        core.RuleID
	date        time.Time
	start       insight.Mode
	max         insight.Mode
	eval        *Evaluation
	selfReg     bool
	acknowledge *time.Time
	run         config.RunConfig
}

func (in modeInput) allowed(t config.Transition) bool {
	return in.run.TransitionEnabled(in.rule, t)
}

func (in modeInput) ackWithin(days int) bool {
	if in.acknowledge == nil || in.acknowledge.After(in.date) {
		return false
	}
	return core.DaysBetween(*in.acknowledge, in.date) <= days
}

func (in modeInput) ackSinceStreak() bool {
	if in.acknowledge == nil {
		return false
	}
	if in.eval.StreakStart == nil {
		return true
	}
	return !core.DateOf(*in.acknowledge).Before(core.DateOf(*in.eval.StreakStart))
}

// nextMode applies at most one transition per evaluation:
//
//	INFORM  -> SUGGEST  sustained positive self-regulation history
//	SUGGEST -> FLAG     negative signal sustained for FlagSustainDays, unacknowledged
//	FLAG    -> INFORM   trend resolved or fresh acknowledgement
//	FLAG    -> SUGGEST  negative streak shorter than FlagSustainDays
//	SUGGEST -> INFORM   fresh acknowledgement or self-regulation history lost
func nextMode(in modeInput) insight.Mode {
	mode := in.start
	if mode.Rank() > in.max.Rank() {
		mode = in.max
	}
	if in.eval == nil {
		return mode
	}

	switch mode {
	case insight.ModeFlag:
		if (in.ackWithin(freshAckDays) || !in.eval.Negative) && in.allowed(config.RevertToInform) {
			return insight.ModeInform
		}
		// FLAG is held only while the streak still passes Verify
		if !in.eval.Negative || in.eval.SustainedDays < in.run.Analysis.FlagSustainDays {
			return insight.ModeSuggest
		}

	case insight.ModeSuggest:
		if in.ackWithin(freshAckDays) && in.allowed(config.RevertToInform) {
			return insight.ModeInform
		}
		if in.max == insight.ModeFlag &&
			in.eval.Negative &&
			in.eval.SustainedDays >= in.run.Analysis.FlagSustainDays &&
			!in.ackSinceStreak() &&
			in.allowed(config.SuggestToFlag) {
			return insight.ModeFlag
		}
		if !in.selfReg && in.allowed(config.RevertToInform) {
			return insight.ModeInform
		}

	case insight.ModeInform:
		if in.max.Rank() >= insight.ModeSuggest.Rank() &&
			in.selfReg &&
			!in.ackWithin(reentryCooldownDays-1) &&
			in.allowed(config.InformToSuggest) {
			return insight.ModeSuggest
		}
	}
	return mode
}
