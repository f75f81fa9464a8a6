package logging

import "testing"

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"", false},
		{"DEBUG", false},
		{"verbose", true},
	}

	for _, tc := range cases {
		_, err := parseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestInitRejectsInvalidLevel(t *testing.T) {
	if err := Init("loud", "json"); err == nil {
		t.Fatal("expected error for invalid level")
	}
	if err := Init("debug", "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComponentLoggerCarriesComponent(t *testing.T) {
	t.Parallel()

	l := NewComponentLogger("Test")
	if l.component != "Test" {
		t.Fatalf("component = %q, want %q", l.component, "Test")
	}
	scoped := l.WithRequestID("req_123")
	if scoped.component != "Test" {
		t.Fatalf("request-scoped logger lost component: %q", scoped.component)
	}
}
