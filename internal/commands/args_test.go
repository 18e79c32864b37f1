package commands

import (
	"reflect"
	"testing"
)

func scheduleDef() Definition {
	return NewScheduleCommand(nil, "").Definition()
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		text string
		want map[string]string
	}{
		{
			name: "positional with rest",
			def:  scheduleDef(),
			text: "09:00 America/New_York Stand-up in 5 minutes",
			want: map[string]string{"time": "09:00", "timezone": "America/New_York", "message": "Stand-up in 5 minutes"},
		},
		{
			name: "quoted message and named channel",
			def:  scheduleDef(),
			text: `09:30 Europe/London "Lunch: pizza today" channel:<#C42|food>`,
			want: map[string]string{"time": "09:30", "timezone": "Europe/London", "message": "Lunch: pizza today", "channel": "<#C42|food>"},
		},
		{
			name: "named options in any order",
			def:  scheduleDef(),
			text: "message=hello timezone=UTC time=23:59",
			want: map[string]string{"time": "23:59", "timezone": "UTC", "message": "hello"},
		},
		{
			name: "unbalanced quote falls back to fields",
			def:  NewCancelCommand(nil).Definition(),
			text: `don't forget`,
			want: map[string]string{"message": "don't forget"},
		},
		{
			name: "empty",
			def:  scheduleDef(),
			text: "   ",
			want: map[string]string{},
		},
		{
			name: "two word form name quoted",
			def:  NewFormResultCommand(nil).Definition(),
			text: `"Club Signup" Will you attend?`,
			want: map[string]string{"formname": "Club Signup", "responsequery": "Will you attend?"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseArgs(tc.def, tc.text)
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseArgs(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseArgsUnexpected(t *testing.T) {
	if _, err := ParseArgs(NewListCommand(nil).Definition(), "extra"); err == nil {
		t.Fatal("expected error for argument to a command without options")
	}
}
