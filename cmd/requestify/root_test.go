package main

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "completion": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRunRejectsPositionalArgs(t *testing.T) {
	if err := runCmd.Args(runCmd, []string{"extra"}); err == nil {
		t.Error("positional arguments accepted")
	}
}
