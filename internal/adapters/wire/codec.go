package wire

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format selects the byte encoding of a message.
type Format string

const (
	FormatBinary Format = "binary"
	FormatJSON   Format = "json"
)

// ParseFormat resolves a format name; empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatBinary:
		return FormatBinary, nil
	}
	return "", fmt.Errorf("wire: unknown format %q", value)
}

var jsonOptions = protojson.MarshalOptions{Multiline: false, EmitUnpopulated: false}

// Marshal encodes msg in format.
func Marshal(msg *structpb.Struct, format Format) ([]byte, error) {
	switch format {
	case FormatBinary:
		return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	case FormatJSON, "":
		return jsonOptions.Marshal(msg)
	}
	return nil, fmt.Errorf("wire: unknown format %q", format)
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte, format Format) (*structpb.Struct, error) {
	msg := &structpb.Struct{}
	var err error
	switch format {
	case FormatBinary:
		err = proto.Unmarshal(data, msg)
	case FormatJSON, "":
		err = protojson.Unmarshal(data, msg)
	default:
		return nil, fmt.Errorf("wire: unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}
