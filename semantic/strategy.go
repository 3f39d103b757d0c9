package semantic

import "fmt"

// Strategy is the layout treatment applied to a page.
type Strategy string

const (
	// Split puts content and a synchronized action zone side by side.
	Split Strategy = "split"
	// EnlargeOnly enlarges text and controls in place.
	EnlargeOnly Strategy = "enlarge-only"
)

// Policy selects how the strategy is decided. An engine uses one policy
// for its whole lifetime.
type Policy string

const (
	// PolicyBaseline picks enlarge-only for single-purpose form pages and
	// split when there is both content and action material.
	PolicyBaseline Policy = "baseline"
	// PolicyAlwaysSplit always splits, showing a placeholder when the
	// action zone is empty.
	PolicyAlwaysSplit Policy = "always-split"
)

// ParsePolicy validates a configured policy name. Empty means baseline.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBaseline:
		return PolicyBaseline, nil
	case PolicyAlwaysSplit:
		return PolicyAlwaysSplit, nil
	}
	return "", fmt.Errorf("semantic: unknown strategy policy %q", s)
}

// DecideStrategy is a pure function of the zones and page counts.
func DecideStrategy(z Zones, st Stats, p Policy) Strategy {
	if p == PolicyAlwaysSplit {
		return Split
	}
	if st.Forms >= 1 && st.ContentContainers == 0 {
		return EnlargeOnly
	}
	if len(z.Content) > 0 && len(z.Action) > 0 {
		return Split
	}
	if len(z.Content) > len(z.Action) {
		return Split
	}
	return EnlargeOnly
}
