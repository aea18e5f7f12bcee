// Package scorellm asks the configured LLM for a qualitative read of a keyword
// and its catalog snapshot, returning dimension estimates, competitor
// weaknesses, and a suggested differentiator.
//
// Client implements scoring.Assessor. Callers treat any error as a reason to
// degrade to heuristic-only scoring.
package scorellm
