package listing

import (
	"errors"
	"testing"
)

func TestClassifyRecordStatus(t *testing.T) {
	cases := []struct {
		in   int
		want RecordStatus
	}{
		{0, StatusGood},
		{1, StatusWarn},
		{2, StatusBad},
		{5, StatusBad},
	}
	for _, tc := range cases {
		got, err := ClassifyRecordStatus(tc.in)
		if err != nil {
			t.Fatalf("ClassifyRecordStatus(%d): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ClassifyRecordStatus(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyRecordStatusNegative(t *testing.T) {
	_, err := ClassifyRecordStatus(-1)
	if !errors.Is(err, ErrNegativeViolations) {
		t.Errorf("err = %v, want ErrNegativeViolations", err)
	}
}

func TestRecordStatusLabel(t *testing.T) {
	if got := StatusGood.Label(0); got != "Clean record" {
		t.Errorf("good label = %q", got)
	}
	if got := StatusWarn.Label(1); got != "1 open item" {
		t.Errorf("warn label = %q", got)
	}
	if got := StatusBad.Label(3); got != "3 violations" {
		t.Errorf("bad label = %q", got)
	}
}
