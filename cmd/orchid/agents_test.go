package main

import (
	"strings"
	"testing"

	"github.com/jtarrant/orchid/pkg/models"
)

func TestAutonomyFlagHelpListsValidModes(t *testing.T) {
	flag := agentsAddCmd.Flags().Lookup("autonomy")
	if flag == nil {
		t.Fatal("autonomy flag not registered")
	}

	start := strings.Index(flag.Usage, "(")
	end := strings.Index(flag.Usage, ")")
	if start == -1 || end < start {
		t.Fatalf("usage %q carries no value list", flag.Usage)
	}
	for _, v := range strings.Split(flag.Usage[start+1:end], ",") {
		mode := models.ExecutionMode(strings.TrimSpace(v))
		if !mode.Valid() {
			t.Errorf("documented mode %q is rejected by validation", mode)
		}
	}
}
