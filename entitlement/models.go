package entitlement

// Result is the outcome of a quota evaluation. A denial is a normal result,
// not an error: callers turn Allowed=false into an upgrade prompt.
type Result struct {
	Allowed   bool   `json:"allowed"`
	Action    string `json:"action,omitempty"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}
