package util

import (
	"reflect"
	"testing"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CHEKBOT_TEST_VAR", "value")
	if got := EnvOrDefault("CHEKBOT_TEST_VAR", "fallback"); got != "value" {
		t.Errorf("expected value, got %q", got)
	}
	t.Setenv("CHEKBOT_TEST_VAR", "")
	if got := EnvOrDefault("CHEKBOT_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for empty value, got %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
		{"garbage", false, false},
		{" true ", false, true},
	}
	for _, tc := range cases {
		t.Setenv("CHEKBOT_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("CHEKBOT_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	t.Setenv("CHEKBOT_TEST_LIST", "a, b ,,c ")
	if got := SplitList("CHEKBOT_TEST_LIST"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected list: %v", got)
	}
	t.Setenv("CHEKBOT_TEST_LIST", "")
	if got := SplitList("CHEKBOT_TEST_LIST"); got != nil {
		t.Errorf("expected nil for empty variable, got %v", got)
	}
}
