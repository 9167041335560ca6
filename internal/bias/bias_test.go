package bias

import (
	"sort"
	"testing"
)

func TestRecordRejection(t *testing.T) {
	m := make(Map)
	touched := RecordRejection(m, "New Controller Leaked")

	// "new" is a stop word and never learns a penalty.
	want := Map{"controller": -1, "leaked": -1}
	if len(m) != len(want) {
		t.Fatalf("bias map = %v, want %v", m, want)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("bias[%q] = %d, want %d", k, m[k], v)
		}
	}

	sort.Strings(touched)
	if len(touched) != 2 || touched[0] != "controller" || touched[1] != "leaked" {
		t.Errorf("touched = %v, want [controller leaked]", touched)
	}
}

func TestRepeatedRejectionMonotonic(t *testing.T) {
	m := make(Map)
	titles := []string{
		"New Controller Leaked",
		"Another Controller Story",
		"Controller Prices Rise",
	}
	prev := 0
	for _, title := range titles {
		RecordRejection(m, title)
		if m["controller"] >= prev {
			t.Fatalf("bias[controller] = %d after %q, expected strictly below %d", m["controller"], title, prev)
		}
		prev = m["controller"]
	}
	if m["controller"] != -3 {
		t.Errorf("bias[controller] = %d, want -3", m["controller"])
	}
}

func TestRejectionStartsAtMinusOne(t *testing.T) {
	m := make(Map)
	RecordRejection(m, "Quantum Engine")
	if m["quantum"] != -1 || m["engine"] != -1 {
		t.Errorf("first rejection = %v, want -1 entries", m)
	}
}

func TestClone(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}

	m := Map{"controller": -2}
	c := Clone(m)
	c["controller"] = -99
	if m["controller"] != -2 {
		t.Error("Clone should be independent of the original")
	}
}
