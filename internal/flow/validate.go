package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/RegFlow/internal/models"
)

var (
	emailRegex     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex     = regexp.MustCompile(`^[\d\s+\-()]+$`)
	nonDigitsRegex = regexp.MustCompile(`\D`)
	leadingIntRe   = regexp.MustCompile(`^[+-]?\d+`)

	patternCache sync.Map // pattern string -> *regexp.Regexp
)

// Validate runs every validator of q against input and returns the first failure
// message, or "" when the input is acceptable. Format validators accept blank input;
// only the required kind rejects it.
func Validate(q models.Question, input string) string {
	for _, v := range q.Validators {
		if msg := check(v, input); msg != "" {
			return msg
		}
	}
	return ""
}

func check(v models.Validator, input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" && v.Kind != models.ValidatorRequired {
		return ""
	}

	switch v.Kind {
	case models.ValidatorRequired:
		if trimmed == "" {
			return message(v, MsgRequired)
		}
	case models.ValidatorEmail:
		if !emailRegex.MatchString(trimmed) {
			return message(v, "Please enter a valid email address")
		}
	case models.ValidatorPhone:
		digits := nonDigitsRegex.ReplaceAllString(trimmed, "")
		if !phoneRegex.MatchString(trimmed) || len(digits) < intOr(v.Min, 0) {
			return message(v, "Please enter a valid phone number")
		}
	case models.ValidatorNumberRange:
		n, err := leadingInt(trimmed)
		if err != nil || n < intOr(v.Min, 0) || n > intOr(v.Max, 0) {
			return message(v, fmt.Sprintf("Please enter a number between %d and %d", intOr(v.Min, 0), intOr(v.Max, 0)))
		}
	case models.ValidatorMinLength:
		if len([]rune(trimmed)) < intOr(v.Min, 0) {
			return message(v, fmt.Sprintf("Please enter at least %d characters", intOr(v.Min, 0)))
		}
	case models.ValidatorRegex:
		re, err := compile(v.Pattern)
		if err != nil {
			slog.Warn("flow.check: invalid regex validator, accepting input", "pattern", v.Pattern, "error", err)
			return ""
		}
		if !re.MatchString(trimmed) {
			return message(v, "Please check the format of your answer")
		}
	}
	return ""
}

// leadingInt parses the integer prefix of s, so "1500.5" and "1500 elo" read as 1500.
func leadingInt(s string) (int, error) {
	digits := leadingIntRe.FindString(s)
	if digits == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(digits)
}

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func message(v models.Validator, fallback string) string {
	if v.Message != "" {
		return v.Message
	}
	return fallback
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
