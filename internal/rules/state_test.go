package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"n1core/domain/core"
	"n1core/domain/insight"
	"n1core/internal/config"
)

func TestNextMode(t *testing.T) {
	streakStart := core.AddDays(date, -25)
	negative := &Evaluation{Negative: true, SustainedDays: 26, StreakStart: &streakStart}
	calm := &Evaluation{}
	brokenStreak := &Evaluation{Negative: true, SustainedDays: 2}
	yesterday := core.AddDays(date, -1)
	lastWeek := core.AddDays(date, -10)
	inStreak := core.AddDays(date, -5)

	tests := []struct {
		name    string
		start   insight.Mode
		max     insight.Mode
		eval    *Evaluation
		selfReg bool
		ack     *time.Time
		want    insight.Mode
	}{
		{"inform stays without history", insight.ModeInform, insight.ModeFlag, negative, false, nil, insight.ModeInform},
		{"inform to suggest", insight.ModeInform, insight.ModeFlag, calm, true, nil, insight.ModeSuggest},
		{"inform capped by rule max", insight.ModeInform, insight.ModeInform, calm, true, nil, insight.ModeInform},
		{"no double step in one run", insight.ModeInform, insight.ModeFlag, negative, true, nil, insight.ModeSuggest},
		{"recent ack blocks re-entry", insight.ModeInform, insight.ModeFlag, calm, true, &yesterday, insight.ModeInform},
		{"old ack allows re-entry", insight.ModeInform, insight.ModeFlag, calm, true, &lastWeek, insight.ModeSuggest},
		{"suggest to flag", insight.ModeSuggest, insight.ModeFlag, negative, true, nil, insight.ModeFlag},
		{"ack inside streak blocks flag", insight.ModeSuggest, insight.ModeFlag, negative, true, &inStreak, insight.ModeSuggest},
		{"suggest reverts on fresh ack", insight.ModeSuggest, insight.ModeFlag, negative, true, &yesterday, insight.ModeInform},
		{"suggest reverts when history lost", insight.ModeSuggest, insight.ModeSuggest, calm, false, nil, insight.ModeInform},
		{"flag holds while negative", insight.ModeFlag, insight.ModeFlag, negative, false, nil, insight.ModeFlag},
		{"flag drops to suggest when streak breaks", insight.ModeFlag, insight.ModeFlag, brokenStreak, true, nil, insight.ModeSuggest},
		{"flag reverts when resolved", insight.ModeFlag, insight.ModeFlag, calm, true, nil, insight.ModeInform},
		{"not applicable keeps mode", insight.ModeSuggest, insight.ModeFlag, nil, false, nil, insight.ModeSuggest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextMode(modeInput{
				rule:        RuleSustainedLowReadiness,
				date:        date,
				start:       tt.start,
				max:         tt.max,
				eval:        tt.eval,
				selfReg:     tt.selfReg,
				acknowledge: tt.ack,
				run:         runConfig(config.DefaultFlags()),
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextModeHonorsTransitionToggles(t *testing.T) {
	streakStart := core.AddDays(date, -25)
	negative := &Evaluation{Negative: true, SustainedDays: 26, StreakStart: &streakStart}

	flags := config.DefaultFlags()
	flags.Rules = map[core.RuleID]config.RuleFlags{
		RuleSustainedLowReadiness: {Transitions: map[config.Transition]bool{config.SuggestToFlag: false}},
	}
	got := nextMode(modeInput{
		rule:    RuleSustainedLowReadiness,
		date:    date,
		start:   insight.ModeSuggest,
		max:     insight.ModeFlag,
		eval:    negative,
		selfReg: true,
		run:     runConfig(flags),
	})
	assert.Equal(t, insight.ModeSuggest, got)

	flags = config.DefaultFlags()
	flags.Transitions[config.InformToSuggest] = false
	got = nextMode(modeInput{
		rule:    RuleLoadSpike,
		date:    date,
		start:   insight.ModeInform,
		max:     insight.ModeSuggest,
		eval:    &Evaluation{},
		selfReg: true,
		run:     runConfig(flags),
	})
	assert.Equal(t, insight.ModeInform, got)

	flags = config.DefaultFlags()
	flags.Transitions[config.RevertToInform] = false
	got = nextMode(modeInput{
		rule:    RuleSustainedLowReadiness,
		date:    date,
		start:   insight.ModeFlag,
		max:     insight.ModeFlag,
		eval:    &Evaluation{},
		selfReg: true,
		run:     runConfig(flags),
	})
	assert.Equal(t, insight.ModeSuggest, got, "a resolved flag is not held when revert is off")
}
