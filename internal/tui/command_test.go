package tui

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: "quit"}},
		{"q", Command{Name: "quit"}},
		{"  Radius 5 ", Command{Name: "radius", Args: "5"}},
		{"report   spoiled milk", Command{Name: "report", Args: "spoiled milk"}},
		{"where -3.7,-38.5", Command{Name: "where", Args: "-3.7,-38.5"}},
		{"fo", Command{Name: "following"}},
		{"cats baked dairy", Command{Name: "cat", Args: "baked dairy"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCommandFields(t *testing.T) {
	got := ParseCommand("cat  baked   dairy").Fields()
	if want := []string{"baked", "dairy"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
	if got := ParseCommand("cat").Fields(); len(got) != 0 {
		t.Errorf("Fields() = %v, want empty", got)
	}
}

func TestCommandHelpCoversCommands(t *testing.T) {
	for _, h := range commandHelp {
		if h.Key == "" || h.Key[0] != ':' {
			t.Errorf("help entry %q should start with ':'", h.Key)
		}
	}
}
