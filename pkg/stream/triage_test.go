package stream

import "testing"

func TestIsTrivialPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"hi", true},
		{"Hello", true},
		{"  hey!  ", true},
		{"Thank you.", true},
		{"good morning", true},
		{"What is the maximum daily dose of ibuprofen?", false},
		{"hi, can you check this interaction", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTrivialPrompt(tt.prompt); got != tt.want {
			t.Errorf("IsTrivialPrompt(%q) = %v, want %v", tt.prompt, got, tt.want)
		}
	}
}
