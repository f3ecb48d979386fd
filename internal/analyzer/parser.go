// Package analyzer classifies raw Expo Snack deployment errors and turns
// them into a prioritized remediation plan.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// patternGroup binds one ErrorKind to its recognition patterns. Groups are
// tried in order and the first matching pattern wins, so an earlier kind
// takes precedence even when a later pattern would also match.
type patternGroup struct {
	kind     ErrorKind
	patterns []*regexp.Regexp
}

var errorPatterns = []patternGroup{
	{KindMissingModule, compileAll(
		`Unable to resolve module ['"]([^'"]+)['"]`,
		`Module not found: Error: Can't resolve ['"]([^'"]+)['"]`,
		`Cannot resolve dependency ['"]([^'"]+)['"]`,
	)},
	{KindImportError, compileAll(
		`SyntaxError: Cannot use import statement outside a module`,
		`Import error: (.+)`,
		`Failed to import ['"]([^'"]+)['"]`,
	)},
	{KindNavigationError, compileAll(
		`NavigationContainer.*not found`,
		`@react-navigation.*not found`,
		`createStackNavigator.*not found`,
		`Navigation.*is not defined`,
	)},
	{KindSyntaxError, compileAll(
		`SyntaxError: (.+)`,
		`Unexpected token (.+)`,
		`Parse error: (.+)`,
	)},
	{KindDependencyError, compileAll(
		`Package ['"]([^'"]+)['"] not found`,
		`Module ['"]([^'"]+)['"] is not installed`,
		`Cannot find module ['"]([^'"]+)['"]`,
	)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// Parse converts raw error messages into one ParsedError each, preserving
// input order. It never fails: unrecognized text degrades to KindUnknown.
func Parse(messages []string) []ParsedError {
	parsed := make([]ParsedError, 0, len(messages))
	for _, m := range messages {
		parsed = append(parsed, parseOne(m))
	}
	return parsed
}

func parseOne(message string) ParsedError {
	message = strings.TrimSpace(message)

	for _, group := range errorPatterns {
		for _, pat := range group.patterns {
			m := pat.FindStringSubmatch(message)
			if m == nil {
				continue
			}
			capture := ""
			if len(m) > 1 {
				capture = m[1]
			}
			return classify(group.kind, message, capture)
		}
	}

	return ParsedError{Kind: KindUnknown, Message: message}
}

// localModule reports whether a captured module path refers to a file inside
// the generated project rather than a third-party package.
func localModule(module string) bool {
	return strings.HasPrefix(module, "./") ||
		strings.HasPrefix(module, "../") ||
		strings.HasPrefix(module, "src/")
}

func classify(kind ErrorKind, message, capture string) ParsedError {
	switch kind {
	case KindMissingModule:
		if localModule(capture) {
			return ParsedError{
				Kind:          KindMissingComponent,
				Message:       message,
				MissingModule: capture,
				SuggestedFix:  fmt.Sprintf("Create missing component: %s", capture),
				AutoFixable:   true,
			}
		}
		return ParsedError{
			Kind:          KindDependencyError,
			Message:       message,
			MissingModule: capture,
			SuggestedFix:  fmt.Sprintf("Add dependency: %s", capture),
			AutoFixable:   true,
		}
	case KindDependencyError:
		return ParsedError{
			Kind:          KindDependencyError,
			Message:       message,
			MissingModule: capture,
			SuggestedFix:  fmt.Sprintf("Add dependency: %s", capture),
			AutoFixable:   true,
		}
	case KindNavigationError:
		return ParsedError{
			Kind:         KindNavigationError,
			Message:      message,
			SuggestedFix: "Add React Navigation dependencies and setup",
			AutoFixable:  true,
		}
	case KindSyntaxError:
		return ParsedError{
			Kind:         KindSyntaxError,
			Message:      message,
			SuggestedFix: "Fix syntax errors in code",
		}
	default:
		return ParsedError{Kind: kind, Message: message}
	}
}
