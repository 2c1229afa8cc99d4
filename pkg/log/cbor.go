package log

import (
	"github.com/fxamacker/cbor/v2"
)

// Trace files hold CBOR items back to back with no header, so a truncated
// file still yields every event written before the cut.
var traceEnc, traceDec = traceModes()

func traceModes() (cbor.EncMode, cbor.DecMode) {
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("log: trace encoder mode: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic("log: trace decoder mode: " + err.Error())
	}
	return enc, dec
}

// EncodeEvent returns the CBOR form of a single trace event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent parses one trace event. Trailing bytes after the first item
// are an error; use a Reader for whole files.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
