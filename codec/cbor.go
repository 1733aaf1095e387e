// Package codec holds the CBOR encoding configuration shared by the bolt
// backend, the journal and the event publisher.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so that the
// same logical value always produces identical bytes. The journal depends
// on this: entry hashes are computed over the encoded form.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// identity.Identity implements encoding.TextMarshaler and must encode
	// as its address string, not as an opaque byte array.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation for data. Used by the
// journal dump command.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
