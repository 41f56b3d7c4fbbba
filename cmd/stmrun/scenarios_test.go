package main

import (
	"strings"
	"testing"

	"github.com/rivervm/stm"
)

func testConfig() stm.Config {
	return stm.Config{Enabled: true, ThreadCount: 4}
}

func TestCounterRaceScenarioReachesExpectedTotal(t *testing.T) {
	summary, err := counterRaceScenario(testConfig())
	if err != nil {
		t.Fatalf("counterRaceScenario: %v", err)
	}
	if !strings.Contains(summary, "n=200") {
		t.Fatalf("summary = %q, want it to report n=200", summary)
	}
}

func TestDisjointObjectsScenarioNeverAborts(t *testing.T) {
	summary, err := disjointObjectsScenario(testConfig())
	if err != nil {
		t.Fatalf("disjointObjectsScenario: %v", err)
	}
	if !strings.Contains(summary, "commits=2 aborts=0") {
		t.Fatalf("summary = %q, want aborts=0: disjoint writes must never conflict", summary)
	}
}

func TestWriteWriteConflictScenarioExactlyOneWinner(t *testing.T) {
	summary, err := writeWriteConflictScenario(testConfig())
	if err != nil {
		t.Fatalf("writeWriteConflictScenario: %v", err)
	}
	if !strings.Contains(summary, "x.v=1") && !strings.Contains(summary, "x.v=2") {
		t.Fatalf("summary = %q, want x.v to be either thread id 1 or 2", summary)
	}
}

func TestReadWriteConflictScenarioConsistentOutcome(t *testing.T) {
	summary, err := readWriteConflictScenario(testConfig())
	if err != nil {
		t.Fatalf("readWriteConflictScenario: %v", err)
	}
	// y.v must be either 1 (thread 1 committed before thread 2's write to x
	// landed) or 100 (thread 1 read x after thread 2's write and retried).
	if !strings.Contains(summary, "y.v=1 ") && !strings.Contains(summary, "y.v=100") {
		t.Fatalf("summary = %q, want y.v=1 or y.v=100", summary)
	}
}

func TestGCDuringTransactionScenarioCommitsAfterRelocation(t *testing.T) {
	summary, err := gcDuringTransactionScenario(testConfig())
	if err != nil {
		t.Fatalf("gcDuringTransactionScenario: %v", err)
	}
	if !strings.Contains(summary, "objs[last].v=-1") {
		t.Fatalf("summary = %q, want the writer's value -1 to have committed against the relocated object", summary)
	}
}

func TestScenariosMapListsAllFive(t *testing.T) {
	want := []string{"counter-race", "disjoint-objects", "write-write", "read-write", "gc-during-commit"}
	for _, name := range want {
		if _, ok := scenarios[name]; !ok {
			t.Errorf("scenarios map missing %q", name)
		}
	}
	if len(scenarios) != len(want) {
		t.Errorf("scenarios map has %d entries, want %d", len(scenarios), len(want))
	}
}
