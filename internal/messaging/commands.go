package messaging

import (
	"strconv"
	"strings"
)

// CommandKind classifies a chat message.
type CommandKind int

const (
	// CmdText is free text, submitted as the answer.
	CmdText CommandKind = iota
	// CmdBack returns to the previous question.
	CmdBack
	// CmdSkip skips the current question.
	CmdSkip
	// CmdRestart discards the session and starts over.
	CmdRestart
	// CmdDone confirms a multi-choice selection.
	CmdDone
	// CmdNumbers picks options by their 1-based number.
	CmdNumbers
)

// Command is a parsed chat message.
type Command struct {
	Kind    CommandKind
	Numbers []int
	Text    string
}

var keywords = map[string]CommandKind{
	"back":     CmdBack,
	"previous": CmdBack,
	"skip":     CmdSkip,
	"restart":  CmdRestart,
	"reset":    CmdRestart,
	"done":     CmdDone,
	"submit":   CmdDone,
}

// ParseCommand classifies text. Keywords are matched case-insensitively; a message made
// only of numbers separated by commas or spaces ("2", "1,3", "1 3") is CmdNumbers.
func ParseCommand(text string) Command {
	trimmed := strings.TrimSpace(text)
	if kind, ok := keywords[strings.ToLower(trimmed)]; ok {
		return Command{Kind: kind, Text: trimmed}
	}
	if nums, ok := parseNumbers(trimmed); ok {
		return Command{Kind: CmdNumbers, Numbers: nums, Text: trimmed}
	}
	return Command{Kind: CmdText, Text: text}
}

func parseNumbers(s string) ([]int, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	if len(fields) == 0 {
		return nil, false
	}
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, true
}
