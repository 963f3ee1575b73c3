package spec

import "testing"

func validPIDSpec(name string) ProcessSpec {
	return ProcessSpec{
		Name:      name,
		Command:   "/usr/bin/" + name,
		RunAsRoot: true,
		Monitor:   MonitorSpec{Type: MonitorPID, PID: &PIDMonitor{PIDFilePath: "/var/run/" + name + ".pid", IntervalSecs: 2}},
		Recovery:  RecoverySpec{Retries: 3, RetryWindowSecs: 60, CooldownSecs: 5},
	}
}

func TestProcessSpecValidateRequiresNameAndCommand(t *testing.T) {
	s := validPIDSpec("web")
	s.Name = ""
	if err := s.Validate(); err == nil {
		t.Fatalf("expected an error for a missing name")
	}

	s = validPIDSpec("web")
	s.Command = ""
	if err := s.Validate(); err == nil {
		t.Fatalf("expected an error for a missing command")
	}
}

func TestProcessSpecValidateRequiresRootOrUser(t *testing.T) {
	s := validPIDSpec("web")
	s.RunAsRoot = false
	s.RunAsUser = ""
	if err := s.Validate(); err == nil {
		t.Fatalf("expected an error when neither run_as_root nor run_as_user is set")
	}
	s.RunAsUser = "web"
	if err := s.Validate(); err != nil {
		t.Fatalf("expected run_as_user alone to satisfy validation: %v", err)
	}
}

func TestMonitorSpecValidateRejectsUnknownType(t *testing.T) {
	m := MonitorSpec{Type: "carrier-pigeon"}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected an error for an unknown monitor type")
	}
}

func TestMonitorSpecValidateRequiresMatchingBlock(t *testing.T) {
	m := MonitorSpec{Type: MonitorPID}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected an error when the pid block is nil")
	}
}

func TestFingerprintChangesWithFields(t *testing.T) {
	a := MonitorSpec{Type: MonitorPID, PID: &PIDMonitor{PIDFilePath: "/a.pid", IntervalSecs: 1}}
	b := MonitorSpec{Type: MonitorPID, PID: &PIDMonitor{PIDFilePath: "/b.pid", IntervalSecs: 1}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected different pid paths to produce different fingerprints")
	}

	c := MonitorSpec{Type: MonitorPID, PID: &PIDMonitor{PIDFilePath: "/a.pid", IntervalSecs: 1}}
	if a.Fingerprint() != c.Fingerprint() {
		t.Fatalf("expected identical specs to produce identical fingerprints")
	}
}

func TestEBPFTruncatedComm(t *testing.T) {
	e := EBPFMonitor{ProcessName: "a-very-long-process-name-exceeding-the-limit"}
	tc := e.TruncatedComm()
	if len(tc) != TaskCommLen-1 {
		t.Fatalf("expected truncation to %d bytes, got %d", TaskCommLen-1, len(tc))
	}

	short := EBPFMonitor{ProcessName: "short"}
	if short.TruncatedComm() != "short" {
		t.Fatalf("expected short names to pass through unchanged")
	}
}

func TestRecoverySpecValidateRequiresPositiveFields(t *testing.T) {
	r := RecoverySpec{Retries: 0, RetryWindowSecs: 60, CooldownSecs: 5}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected an error for non-positive retries")
	}
}
