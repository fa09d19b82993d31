// Package gate embodies the quality gate: the policy that blocks automatic
// deployment of a model that does not out-perform the current production
// baseline on every tracked metric.
//
// The decision is conjunctive and strict by design. The two tracked scores
// (dice and iou) can disagree on boundary cases, so partial improvement never
// promotes. The justification string enumerates every comparison so the
// verdict is auditable from pipeline logs without re-deriving it.
package gate
