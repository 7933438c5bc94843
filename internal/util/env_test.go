package util

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "duration string", value: "2m", want: 2 * time.Minute},
		{name: "plain seconds", value: "30", want: 30 * time.Second},
		{name: "fractional seconds", value: "0.5", want: 500 * time.Millisecond},
		{name: "invalid", value: "soon", want: 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KG_TEST_DURATION", tt.value)
			if got := GetEnvDuration("KG_TEST_DURATION", 7*time.Second); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvNumeric(t *testing.T) {
	t.Setenv("KG_TEST_NUMERIC", "0.25")
	if got := GetEnvNumeric("KG_TEST_NUMERIC", 3); got != 0.25 {
		t.Fatalf("got %v, want 0.25", got)
	}
	if got := GetEnvNumeric("KG_TEST_NUMERIC_MISSING", 3); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("KG_TEST_BOOL", "yes")
	if got := GetEnvBool("KG_TEST_BOOL", true); !got {
		t.Fatal("expected default for unparsable value")
	}
	t.Setenv("KG_TEST_BOOL", "false")
	if got := GetEnvBool("KG_TEST_BOOL", true); got {
		t.Fatal("expected false")
	}
}
