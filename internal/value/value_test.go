package value

import "testing"

func TestValue_Widening(t *testing.T) {
	tests := []struct {
		name   string
		v      Value
		long   int64
		double float64
	}{
		{name: "byte", v: Byte(-3), long: -3, double: -3},
		{name: "char", v: Char(65), long: 65, double: 65},
		{name: "short", v: Short(-300), long: -300, double: -300},
		{name: "int", v: Int(1 << 20), long: 1 << 20, double: 1 << 20},
		{name: "long", v: Long(-1 << 40), long: -1 << 40, double: -1 << 40},
		{name: "float", v: Float(2.5), long: 2, double: 2.5},
		{name: "double", v: Double(-7.25), long: -7, double: -7.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.AsLong(); got != tt.long {
				t.Fatalf("AsLong() = %d, want %d", got, tt.long)
			}
			if got := tt.v.AsDouble(); got != tt.double {
				t.Fatalf("AsDouble() = %g, want %g", got, tt.double)
			}
		})
	}
}

func TestValue_Equal(t *testing.T) {
	if !Long(4).Equal(Long(4)) {
		t.Fatal("equal longs reported unequal")
	}
	if Long(4).Equal(Int(4)) {
		t.Fatal("different kinds reported equal")
	}
	if !Object("x").Equal(Object("x")) {
		t.Fatal("equal comparable objects reported unequal")
	}
	if Object([]int{1}).Equal(Object([]int{1})) {
		t.Fatal("non-comparable objects must not be equal")
	}
}

func TestValue_String(t *testing.T) {
	if got := Object(Longs(1, 2, 3)).String(); got != "[1, 2, 3]" {
		t.Fatalf("list String() = %q", got)
	}
	if got := Bool(true).String(); got != "true" {
		t.Fatalf("bool String() = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	for k := KindBool; k <= KindObject; k++ {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("quad"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
