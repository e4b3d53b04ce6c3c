/*
Package reporter defines the interface used by racedoh components to produce periodic statistics
for the log, along with a couple of helpers for formatting counter arrays consistently.

The string returned by Report() is one or more newline separated lines. The caller splits them and
prefixes each with the reporter Name() so a single line reporter need not bother with a trailing
newline. Empty lines are ignored.
*/
package reporter

// Reporter is implemented by every component which contributes to the periodic status report.
type Reporter interface {

	// Name returns the prefix used for this reporter's output lines.
	Name() string

	// Report returns one or more printable lines separated by newlines. If 'resetCounters' is
	// true, internal counters are reset to zero *after* the report is produced. Report() may be
	// called concurrently with the component's normal work.
	Report(resetCounters bool) string
}
