package program

import (
	"fmt"

	"github.com/cascade-run/cascade/internal/agenterr"
)

func parseErrorf(format string, args ...any) error {
	return agenterr.NewBuilder(agenterr.CodeParseFailed, fmt.Sprintf(format, args...)).
		Category(agenterr.CategoryParse).Build()
}

// cancelledNoDevice reports the user's "none of the above" choice as a
// cancellation so callers unwind exactly like special:nevermind, ending
// the turn without a further apology.
func cancelledNoDevice() error {
	return agenterr.Cancelled("none of the above")
}
