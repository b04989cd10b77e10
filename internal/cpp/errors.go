package cpp

import (
	"fmt"
	"strings"
)

// MissingIncludeError reports a header that no search directory provides.
type MissingIncludeError struct {
	Name     string
	From     string
	Line     int
	Searched []string
}

func (e *MissingIncludeError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("missing include: wrapper header %s not found", e.Name)
	}
	return fmt.Sprintf("missing include: %s:%d: %q not found (searched %s)",
		e.From, e.Line, e.Name, strings.Join(e.Searched, ", "))
}
