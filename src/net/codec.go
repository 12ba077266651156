package net

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"
)

// ProtocolVersion is written in the envelope of every datagram. Datagrams
// carrying any other version are rejected.
const ProtocolVersion uint8 = 1

var (
	// ErrUnknownVersion is returned when decoding a datagram written with an
	// unsupported protocol version.
	ErrUnknownVersion = errors.New("unknown protocol version")

	// ErrUnknownMessage is returned when decoding a datagram whose type tag
	// does not correspond to a known message.
	ErrUnknownMessage = errors.New("unknown message type")
)

var msgpackHandle = newMsgpackHandle()

func newMsgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	return mh
}

// envelope is the outer record of every datagram. Body holds the msgpack
// encoding of the message selected by Type.
type envelope struct {
	Version uint8       `codec:"v"`
	Type    MessageType `codec:"t"`
	Body    []byte      `codec:"b"`
}

// Encode serializes a Message into a datagram payload.
func Encode(msg Message) ([]byte, error) {
	body, err := marshal(msg)
	if err != nil {
		return nil, err
	}

	env := envelope{
		Version: ProtocolVersion,
		Type:    msg.Type(),
		Body:    body,
	}

	return marshal(&env)
}

// Decode parses a datagram payload back into a Message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := unmarshal(data, &env); err != nil {
		return nil, err
	}

	if env.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, env.Version)
	}

	var msg Message
	switch env.Type {
	case Propose:
		msg = new(ProposeMessage)
	case Promise:
		msg = new(PromiseMessage)
	case Accept:
		msg = new(AcceptMessage)
	case Ack:
		msg = new(AckMessage)
	case Commit:
		msg = new(CommitMessage)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, env.Type)
	}

	if err := unmarshal(env.Body, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	return dec.Decode(v)
}
