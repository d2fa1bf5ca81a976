package codec

import (
	"reflect"
	"strings"
	"testing"
)

type person struct {
	ID        int64  `json:"id" msgpack:"id"`
	Username  string `json:"username" msgpack:"username"`
	BirthDate string `json:"birthDate,omitempty" msgpack:"birthDate,omitempty"`
}

func TestByNameRoundTrip(t *testing.T) {
	in := []person{{ID: 101, Username: "jdoe", BirthDate: "1990-01-01"}, {ID: 102}}
	for _, name := range Names {
		c, err := ByName[[]person](name)
		if err != nil {
			t.Fatalf("%s: ByName: %v", name, err)
		}
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s: Encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s: Decode: %v", name, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("%s: round trip mismatch: %+v", name, out)
		}
	}
}

func TestByNameDefaultsAndUnknown(t *testing.T) {
	c, err := ByName[person]("")
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if _, ok := c.(JSON[person]); !ok {
		t.Fatalf("empty name must select JSON, got %T", c)
	}
	if _, err := ByName[person]("protobuf"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestCBORUsesJSONFieldNames(t *testing.T) {
	b, err := MustCBOR[person](true).Encode(person{ID: 1, Username: "u"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(b), "username") {
		t.Fatalf("expected json tag name in CBOR output: %x", b)
	}
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit[person]{Inner: JSON[person]{}, MaxDecode: 16}
	b, _ := c.Encode(person{ID: 1, Username: strings.Repeat("x", 32)})
	if _, err := c.Decode(b); err == nil {
		t.Fatalf("expected size error")
	}
	if _, err := c.Decode([]byte(`{"id":1}`)); err != nil {
		t.Fatalf("small payload: %v", err)
	}
}

func TestCBORRejectsDuplicateKeys(t *testing.T) {
	c := MustCBOR[person](false)
	// {"id": 1, "id": 2}
	dup := []byte{0xa2, 0x62, 'i', 'd', 0x01, 0x62, 'i', 'd', 0x02}
	if _, err := c.Decode(dup); err == nil {
		t.Fatalf("expected duplicate key error")
	}
	p, err := c.Decode([]byte{0xa1, 0x62, 'i', 'd', 0x07})
	if err != nil || p.ID != 7 {
		t.Fatalf("Decode: %+v %v", p, err)
	}
}
