package forms

import (
	"errors"
	"fmt"
	"strings"
)

// FormatCount renders the reply for a form count query.
func FormatCount(formName string, forms []Form) string {
	if len(forms) == 0 {
		return fmt.Sprintf("⚠️ No matching forms found for \"%s\".", formName)
	}
	var sb strings.Builder
	sb.WriteString("🔍 Matching forms found:\n")
	for _, f := range forms {
		fmt.Fprintf(&sb, "**Form Name**: %s\n**Responses Count**: %d\n\n", f.Name, f.ResponseCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatResult renders the answer breakdown for a question.
func FormatResult(question string, counts []AnswerCount) string {
	if len(counts) == 0 {
		return fmt.Sprintf("⚠️ No responses found for the question: \"%s\".", question)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **Responses for:** \"%s\"\n", question)
	for _, c := range counts {
		fmt.Fprintf(&sb, "- **%s**: %d response(s)\n", c.Answer, c.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CountError maps a failed count query to reply text.
func CountError(err error) string {
	if text, ok := knownError(err); ok {
		return text
	}
	return "❌ An error occurred while processing your request."
}

// ResultError maps a failed result query to reply text.
func ResultError(err error) string {
	if text, ok := knownError(err); ok {
		return text
	}
	return "❌ Failed to retrieve question results."
}

func knownError(err error) (string, bool) {
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		return "⚠️ Error: " + remote.Message, true
	case errors.Is(err, ErrNotConfigured):
		return "⚠️ Form queries are not configured for this bot.", true
	}
	return "", false
}
