package codec

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type setting struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

func TestByNameRoundTrip(t *testing.T) {
	in := []setting{{Key: "isRegistrationOpen", Value: true}, {Key: "maintenance"}}
	for _, name := range []string{"", "json", "cbor", "msgpack"} {
		c, err := ByName[[]setting](name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
			t.Fatalf("%s round trip: got %+v want %+v", name, out, in)
		}
	}
	if _, err := ByName[int]("yaml"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := CBOR[map[string]int]{}.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, _ := CBOR[map[string]int]{}.Encode(in)
		if string(again) != string(first) {
			t.Fatalf("encoding not stable")
		}
	}
}

func TestBoundedFallsBackToJSON(t *testing.T) {
	c := Bounded[string]("yaml", 16)
	b, err := c.Encode("hi")
	if err != nil || string(b) != `"hi"` {
		t.Fatalf("Encode = %q, %v", b, err)
	}
	if _, err := c.Decode([]byte(`"a very long string"`)); err == nil {
		t.Fatalf("limit not applied")
	}
}

func TestMsgpackUsesJSONNames(t *testing.T) {
	b, err := Msgpack[setting]{}.Encode(setting{Key: "k", Value: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "value") || strings.Contains(string(b), "Value") {
		t.Fatalf("expected json field names in msgpack output, got %q", b)
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: JSON[string]{}, MaxDecode: 4}
	if _, err := c.Decode([]byte(`"too long"`)); err == nil {
		t.Fatalf("expected size error")
	}
	v, err := c.Decode([]byte(`"ok"`))
	if err != nil || v != "ok" {
		t.Fatalf("Decode small: v=%q err=%v", v, err)
	}
}

func TestProtobufStruct(t *testing.T) {
	c := NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	in, err := structpb.NewStruct(map[string]any{"name": "Hackathon", "teamSize": 4})
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.GetFields()["name"].GetStringValue() != "Hackathon" || out.GetFields()["teamSize"].GetNumberValue() != 4 {
		t.Fatalf("unexpected struct: %v", out)
	}
}
