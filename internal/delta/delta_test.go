package delta

import (
	"reflect"
	"testing"
)

func TestDecodeTextAndAttributes(t *testing.T) {
	raw := []byte(`{"ops":[
		{"insert":"Hello "},
		{"insert":"world","attributes":{"bold":true,"italic":true}},
		{"insert":"\n","attributes":{"header":1}}
	]}`)

	d, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(d.Ops) != 3 {
		t.Fatalf("got %d ops, want 3", len(d.Ops))
	}

	if got := d.Ops[0].Insert; got != Text("Hello ") {
		t.Errorf("op 0 insert = %#v, want Text(\"Hello \")", got)
	}
	attrs := d.Ops[1].Attributes
	if attrs == nil || !attrs.Bold || !attrs.Italic {
		t.Errorf("op 1 attributes = %+v, want bold+italic", attrs)
	}
	if d.Ops[2].Attributes.Header != 1 {
		t.Errorf("op 2 header = %d, want 1", d.Ops[2].Attributes.Header)
	}
}

func TestDecodeEmbeds(t *testing.T) {
	raw := []byte(`{"ops":[
		{"insert":{"formula":{"value":"x^2","displaystyle":true}}},
		{"insert":{"note":{"note_id":"abc-123"}}}
	]}`)

	d, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	f, ok := d.Ops[0].Insert.(Formula)
	if !ok {
		t.Fatalf("op 0 = %#v, want Formula", d.Ops[0].Insert)
	}
	if f.Value != "x^2" || !f.DisplayStyle {
		t.Errorf("formula = %+v", f)
	}

	ref, ok := d.Ops[1].Insert.(NoteRef)
	if !ok {
		t.Fatalf("op 1 = %#v, want NoteRef", d.Ops[1].Insert)
	}
	if ref.NoteID != "abc-123" {
		t.Errorf("note_id = %q", ref.NoteID)
	}
}

func TestDecodeMalformedEmbedsAreInvalidNotErrors(t *testing.T) {
	cases := []struct {
		name string
		op   string
	}{
		{"missing insert", `{"attributes":{"bold":true}}`},
		{"numeric insert", `{"insert":42}`},
		{"formula without value", `{"insert":{"formula":{"displaystyle":true}}}`},
		{"formula numeric value", `{"insert":{"formula":{"value":7}}}`},
		{"note without id", `{"insert":{"note":{}}}`},
		{"note numeric id", `{"insert":{"note":{"note_id":5}}}`},
		{"unknown embed", `{"insert":{"image":{"url":"x"}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decode([]byte(`{"ops":[` + tc.op + `]}`))
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if _, ok := d.Ops[0].Insert.(Invalid); !ok {
				t.Errorf("insert = %#v, want Invalid", d.Ops[0].Insert)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	d, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if len(d.Ops) != 0 {
		t.Errorf("got %d ops, want 0", len(d.Ops))
	}
}

func TestOpRoundTrip(t *testing.T) {
	raw := []byte(`{"ops":[{"insert":{"formula":{"value":"a+b"}},"attributes":{"bold":true}}]}`)
	d, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	out, err := d.Ops[0].MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	d2, err := Decode([]byte(`{"ops":[` + string(out) + `]}`))
	if err != nil {
		t.Fatalf("Decode round trip: %v", err)
	}
	if !reflect.DeepEqual(d.Ops[0], d2.Ops[0]) {
		t.Errorf("round trip mismatch: %#v vs %#v", d.Ops[0], d2.Ops[0])
	}
}
