package codec

import "github.com/fxamacker/cbor/v2"

// CBOR encodes with fxamacker/cbor. Build it with NewCBOR; the zero value has
// no modes and panics.
//
// Fields without cbor tags use their json tags, so a User keeps the same field
// names under every codec.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// maxCollection bounds arrays and maps decoded from cache entries. A users
// collection larger than this is not worth caching.
const maxCollection = 1 << 17

// NewCBOR builds a codec. deterministic selects RFC 8949 core deterministic
// encoding (sorted keys) so equal records encode to equal bytes.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: maxCollection,
		MaxMapPairs:      maxCollection,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR panics if NewCBOR fails.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}
