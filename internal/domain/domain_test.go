package domain

import "testing"

func TestIsSuccessStatus_Boundaries(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{199, false},
		{200, true},
		{204, true},
		{299, true},
		{300, false},
		{404, false},
		{408, false},
		{500, false},
		{503, false},
		{0, false},
	}
	for _, c := range cases {
		if got := IsSuccessStatus(c.code); got != c.want {
			t.Fatalf("IsSuccessStatus(%d)=%v want %v", c.code, got, c.want)
		}
	}
}

func TestMonitor_HasChannels(t *testing.T) {
	if (Monitor{}).HasChannels() {
		t.Fatalf("empty monitor should have no channels")
	}
	if !(Monitor{AlertEmail: "ops@example.com"}).HasChannels() {
		t.Fatalf("email-only monitor should have channels")
	}
	if !(Monitor{WebhookURL: "https://hooks.example.com/x"}).HasChannels() {
		t.Fatalf("webhook-only monitor should have channels")
	}
}

func TestMonitor_DisplayName(t *testing.T) {
	if got := (Monitor{URL: "https://a"}).DisplayName(); got != "https://a" {
		t.Fatalf("want URL fallback, got %q", got)
	}
	if got := (Monitor{Name: "API", URL: "https://a"}).DisplayName(); got != "API" {
		t.Fatalf("want name, got %q", got)
	}
}

func TestTransition_String(t *testing.T) {
	if TransitionNone.String() != "none" || TransitionBecameDown.String() != "became-down" || TransitionBecameUp.String() != "became-up" {
		t.Fatalf("unexpected transition names")
	}
}
