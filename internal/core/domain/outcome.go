package domain

type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome tags which path a fallback-capable stage took.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Err    error         `json:"-"`
}

func OK() Outcome {
	return Outcome{Status: OutcomeOK}
}

func Degraded(reason string, err error) Outcome {
	return Outcome{Status: OutcomeDegraded, Reason: reason, Err: err}
}

func Failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Err: err}
}

func (o Outcome) IsDegraded() bool {
	return o.Status == OutcomeDegraded
}

// Degradation is a degraded stage reported in response metadata.
type Degradation struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}
