package util_test

import (
	"fmt"
	"testing"

	"github.com/nasa-jpl/fs4000scan/util"
)

func ExampleSetBit_MSB() {
	out := util.SetBit(0, 7, true)
	fmt.Printf("%08b\n", out)
	// Output: 10000000
}

func ExampleSetBit_LSB() {
	out := util.SetBit(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

func TestGetBitRoundTripsSetBit(t *testing.T) {
	for idx := uint(0); idx < 8; idx++ {
		b := util.SetBit(0, idx, true)
		if !util.GetBit(b, idx) {
			t.Errorf("GetBit(%08b, %d) = false after SetBit high", b, idx)
		}
		b = util.SetBit(b, idx, false)
		if util.GetBit(b, idx) {
			t.Errorf("GetBit(%08b, %d) = true after SetBit low", b, idx)
		}
	}
}

func TestUniqueString(t *testing.T) {
	inp := []string{"a", "b", "c", "a"}
	expected := []string{"a", "b", "c"}
	output := util.UniqueString(inp)
	for i := 0; i < len(output); i++ {
		if output[i] != expected[i] {
			t.Errorf("expected %s got %s", expected[i], output[i])
		}
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != high {
		t.Errorf("expected out of range value %f to clamp to %f, got %f", input, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != low {
		t.Errorf("expected out of range value %f to clamp to %f, got %f", input, low, clamped)
	}
}

func TestClampWithinRangeIsUnchanged(t *testing.T) {
	clamped := util.Clamp(5, 0, 10)
	if clamped != 5 {
		t.Errorf("expected in-range value to pass through unchanged, got %f", clamped)
	}
}
