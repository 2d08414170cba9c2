package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func encode(t *testing.T, events ...inputEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range events {
		if err := binary.Write(&buf, binary.NativeEndian, ev); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestDecodeEvent(t *testing.T) {
	want := inputEvent{Sec: 1700000000, Usec: 250000, Type: evKey, Code: 0x110, Value: 1}
	data := encode(t, want)

	if len(data) != eventSize {
		t.Fatalf("encoded size = %d, want %d", len(data), eventSize)
	}
	if got := decodeEvent(data); got != want {
		t.Errorf("decodeEvent() = %+v, want %+v", got, want)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		ev     inputEvent
		want   Response
		wantOK bool
	}{
		{
			name:   "left press",
			ev:     inputEvent{Type: evKey, Code: 0x110, Value: valuePress},
			want:   Response{Success: true, Event: "button", Data: ButtonData{Button: "left", Pressed: true}},
			wantOK: true,
		},
		{
			name:   "right release",
			ev:     inputEvent{Type: evKey, Code: 0x111, Value: valueRelease},
			want:   Response{Success: true, Event: "button", Data: ButtonData{Button: "right", Pressed: false}},
			wantOK: true,
		},
		{
			name:   "side buttons",
			ev:     inputEvent{Type: evKey, Code: 0x114, Value: valuePress},
			want:   Response{Success: true, Event: "button", Data: ButtonData{Button: "side_up", Pressed: true}},
			wantOK: true,
		},
		{
			name:   "end key",
			ev:     inputEvent{Type: evKey, Code: 107, Value: valuePress},
			want:   Response{Success: true, Event: "key", Data: KeyData{Key: "End", Pressed: true}},
			wantOK: true,
		},
		{
			name: "autorepeat ignored",
			ev:   inputEvent{Type: evKey, Code: 107, Value: valueRepeat},
		},
		{
			name: "relative motion ignored",
			ev:   inputEvent{Type: 0x02, Code: 0, Value: 5},
		},
		{
			name: "unmapped key ignored",
			ev:   inputEvent{Type: evKey, Code: 30, Value: valuePress},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translate(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("translate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadEvents(t *testing.T) {
	data := encode(t,
		inputEvent{Type: evKey, Code: 0x110, Value: valuePress},
		inputEvent{Type: 0x00, Code: 0, Value: 0},
		inputEvent{Type: evKey, Code: 0x110, Value: valueRelease},
	)

	var got []Response
	if err := readEvents(bytes.NewReader(data), func(r Response) { got = append(got, r) }); err != nil {
		t.Fatalf("readEvents() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if got[0].Data.(ButtonData).Pressed != true || got[1].Data.(ButtonData).Pressed != false {
		t.Errorf("unexpected notifications %+v", got)
	}
}

func TestReadEvents_TruncatedEvent(t *testing.T) {
	data := encode(t, inputEvent{Type: evKey, Code: 0x110, Value: valuePress})

	err := readEvents(bytes.NewReader(data[:10]), func(Response) {})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestNotificationWireFormat(t *testing.T) {
	note, _ := translate(inputEvent{Type: evKey, Code: 0x113, Value: valuePress})

	line, err := json.Marshal(note)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":0,"success":true,"event":"button","data":{"button":"side_down","pressed":true}}`
	if string(line) != want {
		t.Errorf("wire = %s, want %s", line, want)
	}
}

func TestServe(t *testing.T) {
	in := strings.NewReader(`{"id":1,"action":"ping"}
{"id":2,"action":"grab"}
`)
	var buf bytes.Buffer
	serve(in, &output{enc: json.NewEncoder(&buf)}, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var ping, unknown Response
	json.Unmarshal([]byte(lines[0]), &ping)
	json.Unmarshal([]byte(lines[1]), &unknown)
	if !ping.Success || ping.ID != 1 {
		t.Errorf("ping = %+v", ping)
	}
	if unknown.Success || unknown.ID != 2 {
		t.Errorf("unknown = %+v", unknown)
	}
}

func TestHandle_PingWithoutDevices(t *testing.T) {
	resp := handle(Request{ID: 3, Action: "ping"}, 0)
	if resp.Success || resp.Error == "" {
		t.Errorf("ping without devices = %+v", resp)
	}
}
