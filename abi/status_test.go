package abi

import "testing"

func TestMakeEnvIDRoundTrip(t *testing.T) {
	tests := []struct {
		slot int
		gen  uint32
	}{
		{0, 0},
		{1, 1},
		{MaxSlots - 1, 1},
		{42, 12345},
	}
	for _, tt := range tests {
		id := MakeEnvID(tt.slot, tt.gen)
		if id.Slot() != tt.slot {
			t.Errorf("Slot() = %d, want %d", id.Slot(), tt.slot)
		}
		if id.Generation() != tt.gen {
			t.Errorf("Generation() = %d, want %d", id.Generation(), tt.gen)
		}
	}
}

func TestMakeEnvIDDistinctAcrossGenerations(t *testing.T) {
	a := MakeEnvID(3, 1)
	b := MakeEnvID(3, 2)
	if a == b {
		t.Error("ids from the same slot but different generations must differ")
	}
}

func TestEnvStatusRunningCarriesCPU(t *testing.T) {
	s := StatusRunning(2)
	if !s.Is(Running) {
		t.Error("expected Running kind")
	}
	if s.CPU != 2 {
		t.Errorf("CPU = %d, want 2", s.CPU)
	}
	if s.String() != "RUNNING(cpu=2)" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestEnvStatusNonRunningIgnoresCPU(t *testing.T) {
	if StatusFree.String() != "FREE" {
		t.Errorf("String() = %q, want FREE", StatusFree.String())
	}
	if StatusRunnable.String() != "RUNNABLE" {
		t.Errorf("String() = %q, want RUNNABLE", StatusRunnable.String())
	}
}

func TestEnvTypeString(t *testing.T) {
	if EnvUser.String() != "user" {
		t.Errorf("EnvUser.String() = %q", EnvUser.String())
	}
	if EnvIdle.String() != "idle" {
		t.Errorf("EnvIdle.String() = %q", EnvIdle.String())
	}
}
