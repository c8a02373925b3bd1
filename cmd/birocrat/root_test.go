package main

import "testing"

// The root command aliases runCmd.Run, so a bare `birocrat ./form` must see
// the same flags as `birocrat run ./form`.
func TestRootCommandCarriesRunFlags(t *testing.T) {
	flags := []string{"headless", "json", "param", "params", "session", "fresh"}
	for _, name := range flags {
		if runCmd.Flags().Lookup(name) == nil {
			t.Fatalf("run command missing flag %q", name)
		}
		if rootCmd.Flags().Lookup(name) == nil {
			t.Fatalf("root command missing flag %q", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("debug") == nil {
		t.Fatal("root command missing persistent debug flag")
	}
}

func TestRootCommandParsesRunFlags(t *testing.T) {
	if err := rootCmd.ParseFlags([]string{"--headless", "--session", "abc"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	headless, err := rootCmd.Flags().GetBool("headless")
	if err != nil {
		t.Fatalf("get headless: %v", err)
	}
	if !headless {
		t.Fatal("headless flag not set on root command")
	}
	session, err := rootCmd.Flags().GetString("session")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session != "abc" {
		t.Fatalf("expected session abc, got %q", session)
	}
}
