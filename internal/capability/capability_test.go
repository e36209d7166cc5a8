package capability

import (
	"math"
	"testing"

	"tsa/internal/stackup"
)

func TestComputeCenteredProcess(t *testing.T) {
	// Spec limits exactly 3 sigma out on both sides: Cp = Cpk = 1.
	mc := &stackup.MonteCarloResult{Mean: 5.0, StdDev: 0.05}
	cap := Compute(mc, 4.85, 5.15)
	if cap == nil {
		t.Fatal("Compute() = nil, want capability block")
	}

	if math.Abs(cap.Cp-1.0) > 1e-9 {
		t.Errorf("Cp = %v, want 1.0", cap.Cp)
	}
	if math.Abs(cap.Cpk-1.0) > 1e-9 {
		t.Errorf("Cpk = %v, want 1.0", cap.Cpk)
	}
	if math.Abs(cap.Cpu-cap.Cpl) > 1e-9 {
		t.Errorf("centered process: Cpu %v != Cpl %v", cap.Cpu, cap.Cpl)
	}

	// Phi(-3) * 1e6 on each side.
	wantPPM := 1349.898
	if math.Abs(cap.PPMBelow-wantPPM) > 0.01 {
		t.Errorf("PPMBelow = %v, want ~%v", cap.PPMBelow, wantPPM)
	}
	if math.Abs(cap.PPMAbove-wantPPM) > 0.01 {
		t.Errorf("PPMAbove = %v, want ~%v", cap.PPMAbove, wantPPM)
	}
}

func TestComputeOffCenterProcess(t *testing.T) {
	mc := &stackup.MonteCarloResult{Mean: 5.05, StdDev: 0.05}
	cap := Compute(mc, 4.85, 5.15)
	if cap == nil {
		t.Fatal("Compute() = nil, want capability block")
	}

	// USL is 2 sigma away, LSL is 4 sigma away.
	if math.Abs(cap.Cpu-2.0/3.0) > 1e-9 {
		t.Errorf("Cpu = %v, want %v", cap.Cpu, 2.0/3.0)
	}
	if math.Abs(cap.Cpl-4.0/3.0) > 1e-9 {
		t.Errorf("Cpl = %v, want %v", cap.Cpl, 4.0/3.0)
	}
	// Cpk tracks the worse side.
	if cap.Cpk != cap.Cpu {
		t.Errorf("Cpk = %v, want Cpu %v", cap.Cpk, cap.Cpu)
	}
	// More defects above than below for a high-running process.
	if cap.PPMAbove <= cap.PPMBelow {
		t.Errorf("PPMAbove %v should exceed PPMBelow %v", cap.PPMAbove, cap.PPMBelow)
	}
}

func TestComputeKnownTailProbability(t *testing.T) {
	// Standard normal with limits at +/- 1.96: each tail ~24997.9 PPM.
	mc := &stackup.MonteCarloResult{Mean: 0, StdDev: 1}
	cap := Compute(mc, -1.96, 1.96)
	if cap == nil {
		t.Fatal("Compute() = nil, want capability block")
	}

	want := 24997.9
	if math.Abs(cap.PPMBelow-want) > 0.5 {
		t.Errorf("PPMBelow = %v, want ~%v", cap.PPMBelow, want)
	}
	if math.Abs(cap.PPMAbove-want) > 0.5 {
		t.Errorf("PPMAbove = %v, want ~%v", cap.PPMAbove, want)
	}
}

func TestPPHScaling(t *testing.T) {
	mc := &stackup.MonteCarloResult{Mean: 5.0, StdDev: 0.05}
	cap := Compute(mc, 4.9, 5.1)
	if cap == nil {
		t.Fatal("Compute() = nil, want capability block")
	}

	if math.Abs(cap.PPHBelow-cap.PPMBelow*3.6) > 1e-9 {
		t.Errorf("PPHBelow = %v, want PPMBelow*3.6 = %v", cap.PPHBelow, cap.PPMBelow*3.6)
	}
	if math.Abs(cap.PPHAbove-cap.PPMAbove*3.6) > 1e-9 {
		t.Errorf("PPHAbove = %v, want PPMAbove*3.6 = %v", cap.PPHAbove, cap.PPMAbove*3.6)
	}
}

func TestComputeUndefined(t *testing.T) {
	if cap := Compute(nil, 0, 1); cap != nil {
		t.Errorf("Compute(nil) = %v, want nil", cap)
	}

	// Zero spread: indices are undefined, not infinite.
	mc := &stackup.MonteCarloResult{Mean: 5.0, StdDev: 0}
	if cap := Compute(mc, 4.9, 5.1); cap != nil {
		t.Errorf("Compute() with zero std dev = %v, want nil", cap)
	}
}

func TestSpecLimitsRecorded(t *testing.T) {
	mc := &stackup.MonteCarloResult{Mean: 5.0, StdDev: 0.05}
	cap := Compute(mc, 4.8, 5.2)
	if cap == nil {
		t.Fatal("Compute() = nil, want capability block")
	}
	if cap.LowerSpec != 4.8 || cap.UpperSpec != 5.2 {
		t.Errorf("limits = [%v, %v], want [4.8, 5.2]", cap.LowerSpec, cap.UpperSpec)
	}
}
