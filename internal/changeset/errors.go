package changeset

import (
	"fmt"
	"strings"
)

// ConfigError reports a changeset set that cannot be ordered or applied
// safely. It is always raised before anything touches the database.
type ConfigError struct {
	Reason string
	IDs    []string
}

func (e *ConfigError) Error() string {
	if len(e.IDs) == 0 {
		return "changeset configuration: " + e.Reason
	}
	return fmt.Sprintf("changeset configuration: %s: %s", e.Reason, strings.Join(e.IDs, ", "))
}
