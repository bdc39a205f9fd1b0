package cli

import (
	"context"
	"fmt"
	"strings"
)

// resolveRuleID accepts a full rule ID or a unique prefix of one, as shown
// in `recur rule list`.
func resolveRuleID(ctx context.Context, app *App, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("rule ID is required")
	}

	rules, err := app.Rules.List(ctx)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, r := range rules {
		if r.ID == input {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, input) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		// Let the service report not-found with its own error.
		return input, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("rule ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}
