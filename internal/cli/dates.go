package cli

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

func parseDate(flag, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q, want YYYY-MM-DD", flag, value)
	}
	return t.UTC(), nil
}
