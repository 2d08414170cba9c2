package main

import (
	"encoding/binary"
	"errors"
	"io"
)

// evKey is the evdev event type for keys and buttons.
const evKey = 0x01

// Key values of an EV_KEY event.
const (
	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2
)

// inputEvent mirrors struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// eventSize is the wire size of inputEvent.
const eventSize = 24

// buttonNames maps mouse button codes to the host's button names.
var buttonNames = map[uint16]string{
	0x110: "left",      // BTN_LEFT
	0x111: "right",     // BTN_RIGHT
	0x113: "side_down", // BTN_SIDE
	0x114: "side_up",   // BTN_EXTRA
}

// keyNames maps the keyboard codes worth reporting to key names.
var keyNames = map[uint16]string{
	1:   "Escape",
	59:  "F1",
	60:  "F2",
	61:  "F3",
	62:  "F4",
	63:  "F5",
	64:  "F6",
	65:  "F7",
	66:  "F8",
	67:  "F9",
	68:  "F10",
	87:  "F11",
	88:  "F12",
	102: "Home",
	104: "PageUp",
	107: "End",
	109: "PageDown",
	110: "Insert",
	111: "Delete",
	119: "Pause",
}

// decodeEvent parses one event from b, which must hold eventSize bytes.
func decodeEvent(b []byte) inputEvent {
	return inputEvent{
		Sec:   int64(binary.NativeEndian.Uint64(b[0:8])),
		Usec:  int64(binary.NativeEndian.Uint64(b[8:16])),
		Type:  binary.NativeEndian.Uint16(b[16:18]),
		Code:  binary.NativeEndian.Uint16(b[18:20]),
		Value: int32(binary.NativeEndian.Uint32(b[20:24])),
	}
}

// translate turns an event into a notification. Non-key events, autorepeat
// and unmapped codes yield false.
func translate(ev inputEvent) (Response, bool) {
	if ev.Type != evKey || ev.Value == valueRepeat {
		return Response{}, false
	}
	pressed := ev.Value == valuePress

	if name, ok := buttonNames[ev.Code]; ok {
		return Response{Success: true, Event: "button", Data: ButtonData{Button: name, Pressed: pressed}}, true
	}
	if name, ok := keyNames[ev.Code]; ok {
		return Response{Success: true, Event: "key", Data: KeyData{Key: name, Pressed: pressed}}, true
	}
	return Response{}, false
}

// readEvents decodes events from r and passes each notification to emit
// until r ends. A clean end of stream returns nil.
func readEvents(r io.Reader, emit func(Response)) error {
	buf := make([]byte, eventSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if note, ok := translate(decodeEvent(buf)); ok {
			emit(note)
		}
	}
}
