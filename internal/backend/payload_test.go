package backend

import "testing"

func TestInt64Widths(t *testing.T) {
	m := map[string]any{
		"i64": int64(42),
		"i":   7,
		"u64": uint64(9),
		"f64": float64(1700000000000),
		"str": "not a number",
	}

	tests := []struct {
		key  string
		want int64
		ok   bool
	}{
		{"i64", 42, true},
		{"i", 7, true},
		{"u64", 9, true},
		{"f64", 1700000000000, true},
		{"str", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := Int64(m, tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Int64(%q) = (%d, %v), want (%d, %v)", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStringBoolMapSlice(t *testing.T) {
	m := map[string]any{
		"s":    "hello",
		"b":    true,
		"m":    map[string]any{"k": "v"},
		"list": []any{1, 2},
	}

	if v, ok := String(m, "s"); !ok || v != "hello" {
		t.Errorf("String = (%q, %v)", v, ok)
	}
	if _, ok := String(m, "b"); ok {
		t.Error("String on a bool should miss")
	}
	if v, ok := Bool(m, "b"); !ok || !v {
		t.Errorf("Bool = (%v, %v)", v, ok)
	}
	if v, ok := Map(m, "m"); !ok || v["k"] != "v" {
		t.Errorf("Map = (%v, %v)", v, ok)
	}
	if v, ok := Slice(m, "list"); !ok || len(v) != 2 {
		t.Errorf("Slice = (%v, %v)", v, ok)
	}
	if _, ok := Map(m, "missing"); ok {
		t.Error("Map on a missing key should miss")
	}
}
