package domain

import (
	"testing"
)

// FuzzParseSessionID checks that parsing never panics on arbitrary input and
// that accepted IDs round-trip.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE sessions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Error("accepted nil session ID")
		}
		roundTrip, err := ParseSessionID(id.String())
		if err != nil {
			t.Errorf("valid ID failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed ID value")
		}
	})
}

func FuzzParseRecordID(f *testing.F) {
	f.Add("F-20261018-0001")
	f.Add("F-20261018-")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRecordID(input)
		if err != nil {
			return
		}
		if _, err := ParseRecordID(id.String()); err != nil {
			t.Errorf("valid record ID failed round-trip: %v", err)
		}
	})
}
