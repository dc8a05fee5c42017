package insight

import (
	"time"

	"n1core/domain/core"
	"n1core/domain/signal"
)

// Mode is how strongly an insight speaks
type Mode string

const (
	ModeInform  Mode = "inform"
	ModeSuggest Mode = "suggest"
	ModeFlag    Mode = "flag"
)

// Rank orders modes by strength
func (m Mode) Rank() int {
	switch m {
	case ModeFlag:
		return 2
	case ModeSuggest:
		return 1
	}
	return 0
}

// Valid reports whether the mode is known
func (m Mode) Valid() bool {
	return m == ModeInform || m == ModeSuggest || m == ModeFlag
}

// Action is the advisory next step attached to an insight. None of them change a plan;
// acting on a plan is always a separate athlete-confirmed operation.
type Action string

const (
	ActionNone     Action = "none"
	ActionReview   Action = "review"
	ActionConsider Action = "consider_adjustment"
)

// Advisory reports whether the action is one of the allowed advisory actions
func (a Action) Advisory() bool {
	return a == ActionNone || a == ActionReview || a == ActionConsider
}

// Direction is the evaluative reading of a metric change
type Direction string

const (
	DirectionNone      Direction = ""
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
)

// Response is the athlete's later reaction to an insight
type Response string

const (
	ResponseAcknowledged Response = "acknowledged"
	ResponseDismissed    Response = "dismissed"
	ResponseActed        Response = "acted"
)

// Valid reports whether the response is known
func (r Response) Valid() bool {
	return r == ResponseAcknowledged || r == ResponseDismissed || r == ResponseActed
}

// Record is one emitted decision. Append-only; only AthleteResponse may be attached later.
type Record struct {
	ID              core.InsightID  `json:"id"`
	AthleteID       core.AthleteID  `json:"athlete_id"`
	Date            time.Time       `json:"date"`
	RuleID          core.RuleID     `json:"rule_id"`
	Subject         string          `json:"subject"`
	Mode            Mode            `json:"mode"`
	Action          Action          `json:"action"`
	Metric          signal.Name     `json:"metric,omitempty"`
	Direction       Direction       `json:"direction,omitempty"`
	MessageKey      string          `json:"message_key"`
	CitedData       map[string]any  `json:"cited_data"`
	Confidence      float64         `json:"confidence"`
	SustainedDays   int             `json:"sustained_days,omitempty"`
	Supersedes      *core.InsightID `json:"supersedes,omitempty"`
	AthleteResponse *Response       `json:"athlete_response,omitempty"`
	RespondedAt     *time.Time      `json:"responded_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RuleState is the per-athlete, per-rule mode machine. PrevMode is the mode before
// UpdatedOn, so a retried date re-evaluates from the same start.
type RuleState struct {
	AthleteID      core.AthleteID `json:"athlete_id"`
	RuleID         core.RuleID    `json:"rule_id"`
	Mode           Mode           `json:"mode"`
	PrevMode       Mode           `json:"prev_mode"`
	UpdatedOn      time.Time      `json:"updated_on"`
	StreakStart    *time.Time     `json:"streak_start,omitempty"`
	AcknowledgedOn *time.Time     `json:"acknowledged_on,omitempty"`
}

// StartingMode returns the mode a run on date should transition from
func (s *RuleState) StartingMode(date time.Time) Mode {
	if s == nil || s.Mode == "" {
		return ModeInform
	}
	if core.DateOf(s.UpdatedOn).Equal(core.DateOf(date)) {
		if s.PrevMode == "" {
			return ModeInform
		}
		return s.PrevMode
	}
	return s.Mode
}

// Status is the outcome of evaluating one rule
type Status string

const (
	StatusEmitted       Status = "emitted"
	StatusNotApplicable Status = "not_applicable"
	StatusSuppressed    Status = "suppressed"
	StatusDisabled      Status = "disabled"
	StatusCapped        Status = "capped"
	StatusDuplicate     Status = "duplicate"
	StatusFailed        Status = "failed"
)

// Result is what a rule evaluation produced
type Result struct {
	RuleID  core.RuleID `json:"rule_id"`
	Status  Status      `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Insight *Record     `json:"insight,omitempty"`
}
