// Package classify decides whether an agent's combined stdout/stderr output
// indicates a transient infrastructure fault (worth falling back to the next
// model) or a genuine task-level failure (worth stopping the chain).
package classify

import "regexp"

// OverseerSentinel is the token the overseer (package overseer) stamps onto
// the output of a process it killed for being stuck. Its presence always
// makes an output eligible for fallback.
const OverseerSentinel = "lisa-overseer"

var eligiblePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b429\b`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`(?i)quota`),
	regexp.MustCompile(`(?i)rate limit`),
	regexp.MustCompile(`(?i)resource exhausted`),
	regexp.MustCompile(`(?i)overloaded`),
	regexp.MustCompile(`(?i)\bunavailable\b`),
	regexp.MustCompile(`(?i)model not found`),
	regexp.MustCompile(`(?i)does not exist`),
	regexp.MustCompile(`(?i)etimedout|econnrefused|econnreset|enotfound`),
	regexp.MustCompile(`(?i)\btimeout\b`),
	regexp.MustCompile(`(?i)network error`),
	regexp.MustCompile(`(?i)not installed`),
	regexp.MustCompile(`(?i)not in path`),
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)free plans can only use`),
	regexp.MustCompile(OverseerSentinel),
}

// Eligible reports whether output matches a known transient-failure shape.
// Matching is whole-output, case-insensitive substring/regex, and carries no
// error class beyond this binary decision.
func Eligible(output string) bool {
	for _, p := range eligiblePatterns {
		if p.MatchString(output) {
			return true
		}
	}
	return false
}
