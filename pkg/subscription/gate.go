// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package subscription

// Reason explains a gate decision.
type Reason string

const (
	ReasonNewGroup          Reason = "new_group"
	ReasonThreshold         Reason = "threshold"
	ReasonNoGroup           Reason = "no_group"
	ReasonNoOccurrences     Reason = "no_occurrences"
	ReasonBetweenThresholds Reason = "between_thresholds"
)

// tier notifies on every Every-th occurrence while the count is <= UpTo.
// UpTo == 0 means unbounded.
type tier struct {
	UpTo  int64
	Every int64
}

// notifyTiers samples recurring errors: every 10th occurrence up to 100,
// every 100th up to 1000, every 1000th beyond.
var notifyTiers = []tier{
	{UpTo: 100, Every: 10},
	{UpTo: 1000, Every: 100},
	{Every: 1000},
}

// Decision is the outcome of the notification gate.
type Decision struct {
	Notify bool   `json:"notify" yaml:"notify"`
	Reason Reason `json:"reason" yaml:"reason"`
}

// Gate decides whether an occurrence warrants a notification.
// hasGroup is false when the host did not attach a group to the event.
func Gate(isNew bool, hasGroup bool, timesSeen int64) Decision {
	if isNew {
		return Decision{Notify: true, Reason: ReasonNewGroup}
	}
	if !hasGroup {
		return Decision{Reason: ReasonNoGroup}
	}
	if timesSeen <= 0 {
		return Decision{Reason: ReasonNoOccurrences}
	}

	for _, t := range notifyTiers {
		if t.UpTo == 0 || timesSeen <= t.UpTo {
			if timesSeen%t.Every == 0 {
				return Decision{Notify: true, Reason: ReasonThreshold}
			}
			return Decision{Reason: ReasonBetweenThresholds}
		}
	}
	return Decision{Reason: ReasonBetweenThresholds}
}

// ShouldNotify is Gate for an event that carries a group.
func ShouldNotify(isNew bool, timesSeen int64) bool {
	return Gate(isNew, true, timesSeen).Notify
}
