package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDomainClassifierVerdicts(t *testing.T) {
	cases := []struct {
		reply    string
		err      error
		inDomain bool
		degraded bool
	}{
		{reply: "Yes", inDomain: true},
		{reply: "no.", inDomain: false},
		{reply: "not sure", inDomain: true, degraded: true},
		{err: errors.New("offline"), inDomain: true, degraded: true},
	}
	for _, tc := range cases {
		c := NewDomainClassifier(replying(tc.reply, tc.err), Prompts{Domain: "medical"})
		inDomain, outcome := c.InDomain(context.Background(), "what is the capital of France")
		if inDomain != tc.inDomain || outcome.IsDegraded() != tc.degraded {
			t.Fatalf("reply %q err %v: got inDomain=%v outcome=%+v", tc.reply, tc.err, inDomain, outcome)
		}
	}
}

func TestDomainClassifierPromptNamesDomain(t *testing.T) {
	generator := replying("yes", nil)
	NewDomainClassifier(generator, Prompts{Domain: "medical"}).InDomain(context.Background(), "fever")
	if !strings.Contains(generator.prompts[0], "medical-related") {
		t.Fatalf("expected domain in prompt, got %q", generator.prompts[0])
	}
}
