package mission

import (
	"fmt"
	"strings"

	"machgate/internal/trace"
)

// FormatCollisionReport renders the rejection report stored as the plan of a
// collided mission. It quotes the conflicting evidence verbatim.
func FormatCollisionReport(r trace.Result) string {
	var b strings.Builder
	b.WriteString("# MISSION ABORTED: MACH-TRACE COLLISION\n\n")
	b.WriteString("The objective conflicts with the existing system and was not sent to flight control.\n\n")
	fmt.Fprintf(&b, "**Source:** `%s`\n\n", r.Source)
	b.WriteString("**Conflicting evidence:**\n\n")
	b.WriteString(fence(r.Snippet))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Reason:** %s\n\n", r.Reason)
	b.WriteString("Resolve the conflict or revise the objective, then submit it again.\n")
	return b.String()
}

// fence wraps s in a code fence longer than any backtick run inside it.
func fence(s string) string {
	longest, run := 0, 0
	for _, c := range s {
		if c == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	f := strings.Repeat("`", max(3, longest+1))
	return f + "\n" + strings.TrimRight(s, "\n") + "\n" + f
}
