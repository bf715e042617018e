package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// declineTokens are the answers that refuse a confirmation.
var declineTokens = map[string]bool{
	"n":  true,
	"no": true,
}

// IsDecline reports whether answer refuses a confirmation. Matching ignores
// case and surrounding whitespace.
func IsDecline(answer string) bool {
	return declineTokens[strings.ToLower(strings.TrimSpace(answer))]
}

// Confirm writes prompt and reads one answer. Only a negative answer declines;
// an empty answer or end of input proceeds.
func Confirm(ctx context.Context, r io.Reader, w io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprint(w, FormatPrompt(prompt+" [Y/n]: ")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	answer, err := NewNonBlockingReader(r).ReadLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	return !IsDecline(answer), nil
}
