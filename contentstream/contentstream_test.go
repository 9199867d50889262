package contentstream

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/doctool/ir/raw"
)

func TestParseSimple(t *testing.T) {
	src := []byte("q 1 0 0 1 10 20 cm /Im0 Do Q")
	ops, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 4 {
		t.Fatalf("got %d ops, want 4", len(ops))
	}
	if ops[0].Operator != "q" || ops[3].Operator != "Q" {
		t.Fatalf("graphics state ops wrong: %v %v", ops[0].Operator, ops[3].Operator)
	}
	if ops[1].Operator != "cm" || len(ops[1].Operands) != 6 {
		t.Fatalf("cm op wrong: %+v", ops[1])
	}
	if ops[2].Operator != "Do" {
		t.Fatalf("got %q, want Do", ops[2].Operator)
	}
	name, ok := ops[2].Operands[0].(raw.Name)
	if !ok || name.Val != "Im0" {
		t.Fatalf("Do operand: %+v", ops[2].Operands[0])
	}
}

func TestParseTextRun(t *testing.T) {
	src := []byte("BT /F1 24 Tf 100 700 Td (Hello) Tj ET")
	ops, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var tj *Operation
	for i := range ops {
		if ops[i].Operator == "Tj" {
			tj = &ops[i]
		}
	}
	if tj == nil {
		t.Fatal("no Tj op")
	}
	s, ok := tj.Operands[0].(raw.String)
	if !ok || string(s.Bytes) != "Hello" {
		t.Fatalf("Tj operand: %+v", tj.Operands[0])
	}
}

func TestParseSkipsInlineImage(t *testing.T) {
	src := []byte("q BI /W 2 /H 2 /BPC 8 /CS /G ID \x01\x02\x03\x04 EI Q 1 0 0 RG")
	ops, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	want := []string{"q", "Q", "RG"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	ops := []Operation{
		Op("q"),
		Op("cm", raw.Real(0.5), raw.Int(0), raw.Int(0), raw.Real(0.5), raw.Int(10), raw.Int(20)),
		Op("Tj", raw.Str([]byte("a(b)c\\d"))),
		Op("Do", raw.Name{Val: "Im0"}),
		Op("Q"),
	}
	parsed, err := Parse(Serialize(ops))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(parsed), len(ops))
	}
	s := parsed[2].Operands[0].(raw.String)
	if string(s.Bytes) != "a(b)c\\d" {
		t.Fatalf("string escaping broke: %q", s.Bytes)
	}
}

func TestParseArrayOperand(t *testing.T) {
	ops, err := Parse([]byte("[(A) -120 (B)] TJ"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 1 || ops[0].Operator != "TJ" {
		t.Fatalf("ops: %+v", ops)
	}
	arr, ok := ops[0].Operands[0].(*raw.Array)
	if !ok || len(arr.Items) != 3 {
		t.Fatalf("TJ operand: %+v", ops[0].Operands[0])
	}
}
