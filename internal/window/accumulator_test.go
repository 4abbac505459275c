// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"errors"
	"testing"

	"github.com/relabs-tech/accel_fir/internal/imu"
)

func ramp(n, start int) []imu.Frame {
	out := make([]imu.Frame, n)
	for i := range out {
		v := int16(start + i)
		out[i] = imu.Frame{X: v, Y: -v, Z: 2 * v}
	}
	return out
}

func TestAppendBlockPositions(t *testing.T) {
	a, err := New(28, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for b := 0; b < 5; b++ {
		if err := a.AppendBlock(ramp(28, b*28)); err != nil {
			t.Fatalf("block %d: %v", b, err)
		}
		if a.Count() != b+1 {
			t.Fatalf("count = %d after block %d", a.Count(), b)
		}
	}
	if !a.Full() {
		t.Fatal("window not full after 5 blocks")
	}
	ax := a.Axes()
	for i := 0; i < 140; i++ {
		if ax.X[i] != float32(i) || ax.Y[i] != float32(-i) || ax.Z[i] != float32(2*i) {
			t.Fatalf("sample %d = (%g,%g,%g)", i, ax.X[i], ax.Y[i], ax.Z[i])
		}
	}
	if err := a.AppendBlock(ramp(1, 0)); !errors.Is(err, ErrWindowFull) {
		t.Errorf("append to full window err = %v", err)
	}
}

func TestShortBlockHoldsLastSample(t *testing.T) {
	a, _ := New(4, 3)
	if err := a.AppendBlock(ramp(2, 10)); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendBlock(nil); err != nil {
		t.Fatal(err)
	}
	want := []float32{10, 11, 11, 11, 11, 11, 11, 11}
	x := a.Axes().X
	for i, w := range want {
		if x[i] != w {
			t.Errorf("x[%d] = %g, want %g", i, x[i], w)
		}
	}
	if f := a.Fill(); len(f) != 3 || f[0] != 2 || f[1] != 0 {
		t.Errorf("fill = %v, want [2 0 0]", f)
	}
}

func TestOverflowLeavesStateUnchanged(t *testing.T) {
	a, _ := New(28, 5)
	if err := a.AppendBlock(ramp(28, 0)); err != nil {
		t.Fatal(err)
	}
	before := append([]float32(nil), a.Axes().X...)

	err := a.AppendBlock(ramp(30, 500))
	if !errors.Is(err, ErrBlockOverflow) {
		t.Fatalf("err = %v, want ErrBlockOverflow", err)
	}
	if a.Count() != 1 {
		t.Errorf("count = %d, want 1", a.Count())
	}
	for i, v := range a.Axes().X {
		if v != before[i] {
			t.Fatalf("x[%d] changed to %g", i, v)
		}
	}
}

func TestResetRestartsCounter(t *testing.T) {
	a, _ := New(2, 2)
	a.AppendBlock(ramp(2, 0))
	a.AppendBlock(ramp(2, 2))
	a.Reset()
	if a.Count() != 0 || a.Full() {
		t.Fatalf("after reset count=%d full=%v", a.Count(), a.Full())
	}
	if err := a.AppendBlock(ramp(2, 7)); err != nil {
		t.Fatal(err)
	}
	if x := a.Axes().X; x[0] != 7 || x[1] != 8 {
		t.Errorf("x = %v, want [7 8 ...]", x)
	}
}

func TestNewRejectsBadGeometry(t *testing.T) {
	if _, err := New(0, 5); err == nil {
		t.Error("New(0, 5) succeeded")
	}
	if _, err := New(28, -1); err == nil {
		t.Error("New(28, -1) succeeded")
	}
}
