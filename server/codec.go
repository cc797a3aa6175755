package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CodecName is the codec name carried in the Content-Type of every call.
const CodecName = "cbor"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("server: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// cborCodec implements connect.Codec for the plain Go message structs.
type cborCodec struct{}

func (cborCodec) Name() string { return CodecName }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return cborEncMode.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("server: unmarshal %T: %w", msg, err)
	}
	return nil
}
