package security

import (
	"fmt"
)

const maxInputLength = 10_000

// injectionMarkers catch script tags, javascript:/data: URLs, inline event
// handlers, and hex/url/HTML-encoded angle brackets, per spec §4.1.
var injectionMarkers = compileAll([]string{
	`<\s*script[\s>]`,
	`javascript:`,
	`data:text/html`,
	`on\w+\s*=\s*["']`,
	`%3c|%3e`,
	`&lt;|&gt;`,
	`\\x3c|\\x3e`,
})

// chainedCommandMarkers catch a short list of shell payloads that chain
// into the forbidden actions already covered by forbiddenPatterns, e.g.
// `; rm -rf /` tacked onto an otherwise-safe command.
var chainedCommandMarkers = compileAll([]string{
	`;\s*rm\s+-rf\s+/`,
	`&&\s*rm\s+-rf\s+/`,
	`\|\s*(sudo\s+)?(ba)?sh\b`,
	`;\s*sudo\s+rm\s+-rf`,
})

// Validator enforces the request-envelope-independent input constraints:
// max length and injection-suspicious markers.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidateLength rejects inputs over maxInputLength characters.
func (v *Validator) ValidateLength(input string) error {
	if len(input) > maxInputLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", maxInputLength)
	}
	return nil
}

// ValidateNotInjection rejects inputs containing injection-suspicious
// markers (script tags, javascript:/data: URLs, event handlers, encoded
// angle brackets).
func (v *Validator) ValidateNotInjection(input string) error {
	for _, re := range injectionMarkers {
		if re.MatchString(input) {
			return fmt.Errorf("input rejected: injection-suspicious content detected")
		}
	}
	return nil
}

// ValidateShellPayload additionally blocks chained-command payloads that
// encode forbidden actions behind an otherwise innocuous prefix.
func (v *Validator) ValidateShellPayload(input string) error {
	for _, re := range chainedCommandMarkers {
		if re.MatchString(input) {
			return fmt.Errorf("input rejected: chained command payload detected")
		}
	}
	return nil
}

// Validate runs every applicable check for the given input kind.
func (v *Validator) Validate(input string, isShell bool) error {
	if err := v.ValidateLength(input); err != nil {
		return err
	}
	if err := v.ValidateNotInjection(input); err != nil {
		return err
	}
	if isShell {
		if err := v.ValidateShellPayload(input); err != nil {
			return err
		}
	}
	return nil
}
