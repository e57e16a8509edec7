// Package triage is the decision engine: it combines the specialty and
// severity classifiers, the physician scheduler and the summarizer into a
// single Result per transcript.
package triage
