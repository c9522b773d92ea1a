package suggestion

import (
	"strings"

	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/editor"
)

// ContextLines is how many lines around the cursor line go into a payload.
const ContextLines = 5

// BuildPayload captures the cursor's surroundings for a completion request.
// It reports false for a blank document, which never produces a request.
func BuildPayload(snap editor.Snapshot, fileName string) (completion.Payload, bool) {
	if strings.TrimSpace(snap.Text) == "" {
		return completion.Payload{}, false
	}
	lines := snap.Lines()
	line, col := snap.LineCol()
	current := []rune(lines[line])

	from := max(0, line-ContextLines)
	to := min(len(lines), line+1+ContextLines)

	return completion.Payload{
		FileName:         fileName,
		Code:             snap.Text,
		CurrentLine:      string(current),
		PreviousLines:    strings.Join(lines[from:line], "\n"),
		TextBeforeCursor: string(current[:col]),
		TextAfterCursor:  string(current[col:]),
		NextLines:        strings.Join(lines[line+1:to], "\n"),
		LineNumber:       line + 1,
	}, true
}
