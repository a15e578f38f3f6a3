package app

import "testing"

func TestParseCommand_EmptyArgs_DefaultsToServe(t *testing.T) {
	if cmd := ParseCommand([]string{}); cmd != CommandServe {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"serve", CommandServe},
		{"worker", CommandWorker},
		{"migrate", CommandMigrate},
		{"replica", CommandReplica},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			if cmd := ParseCommand([]string{tt.arg}); cmd != tt.want {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.arg, cmd, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownCommand_DefaultsToServe(t *testing.T) {
	if cmd := ParseCommand([]string{"unknown"}); cmd != CommandServe {
		t.Errorf("ParseCommand(unknown) = %q, want %q", cmd, CommandServe)
	}
}
