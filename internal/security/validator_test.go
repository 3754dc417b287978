package security

import (
	"strings"
	"testing"
)

func TestValidateLengthRejectsOversizedInput(t *testing.T) {
	v := NewValidator()
	ok := strings.Repeat("a", maxInputLength)
	if err := v.ValidateLength(ok); err != nil {
		t.Fatalf("expected exactly max length to be accepted: %v", err)
	}
	tooLong := ok + "a"
	if err := v.ValidateLength(tooLong); err == nil {
		t.Fatalf("expected max length + 1 to be rejected")
	}
}

func TestValidateNotInjectionBlocksScriptTags(t *testing.T) {
	v := NewValidator()
	cases := []string{
		"<script>alert(1)</script>",
		"href=javascript:alert(1)",
		"onerror=\"alert(1)\"",
		"%3cscript%3e",
	}
	for _, c := range cases {
		if err := v.ValidateNotInjection(c); err == nil {
			t.Fatalf("expected %q to be rejected", c)
		}
	}
}

func TestValidateShellPayloadBlocksChainedCommands(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateShellPayload("echo hi; rm -rf /"); err == nil {
		t.Fatalf("expected chained rm -rf / to be rejected")
	}
	if err := v.ValidateShellPayload("echo hi"); err != nil {
		t.Fatalf("expected plain echo to be accepted: %v", err)
	}
}
