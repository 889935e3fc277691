package protocol

import (
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the textual form of a DeviceTimestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Years a DeviceTimestamp can carry in its six bit year field.
const (
	MinTimestampYear = 2000
	MaxTimestampYear = 2063
)

// ErrTimestampRange is returned for times outside MinTimestampYear to
// MaxTimestampYear.
var ErrTimestampRange = errors.New("timestamp year outside 2000-2063")

// Bit widths of the packed device timestamp, most significant field first.
const (
	tsYearBits   = 6
	tsMonthBits  = 4
	tsDayBits    = 5
	tsHourBits   = 5
	tsMinuteBits = 6
	tsSecondBits = 6
)

// DeviceTimestamp is the calendar moment packed into four bytes at the start
// of every feeder / cat flap sub-message. Year is an offset from 2000.
//
// Minute and second are 6-bit fields on the wire, so values up to 63 can be
// carried; they are preserved as-is rather than normalised.
type DeviceTimestamp struct {
	Year   int // 0-63, meaning 2000+Year
	Month  int // 1-12 (0-15 on the wire)
	Day    int // 1-31
	Hour   int // 0-23 (0-31 on the wire)
	Minute int // 0-59 (0-63 on the wire)
	Second int // 0-59 (0-63 on the wire)
}

// String formats the timestamp as "YYYY-MM-DD HH:MM:SS".
func (t DeviceTimestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		2000+t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Time converts the timestamp to a UTC time.Time. Out of range fields are
// normalised by time.Date.
func (t DeviceTimestamp) Time() time.Time {
	return time.Date(2000+t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, time.UTC)
}

// Pack returns the 32-bit packed form.
func (t DeviceTimestamp) Pack() uint32 {
	var v uint32
	v = uint32(t.Year) & (1<<tsYearBits - 1)
	v = v<<tsMonthBits | uint32(t.Month)&(1<<tsMonthBits-1)
	v = v<<tsDayBits | uint32(t.Day)&(1<<tsDayBits-1)
	v = v<<tsHourBits | uint32(t.Hour)&(1<<tsHourBits-1)
	v = v<<tsMinuteBits | uint32(t.Minute)&(1<<tsMinuteBits-1)
	v = v<<tsSecondBits | uint32(t.Second)&(1<<tsSecondBits-1)
	return v
}

// UnpackTimestamp splits a packed 32-bit value into its fields.
func UnpackTimestamp(v uint32) DeviceTimestamp {
	var t DeviceTimestamp
	t.Second = int(v & (1<<tsSecondBits - 1))
	v >>= tsSecondBits
	t.Minute = int(v & (1<<tsMinuteBits - 1))
	v >>= tsMinuteBits
	t.Hour = int(v & (1<<tsHourBits - 1))
	v >>= tsHourBits
	t.Day = int(v & (1<<tsDayBits - 1))
	v >>= tsDayBits
	t.Month = int(v & (1<<tsMonthBits - 1))
	v >>= tsMonthBits
	t.Year = int(v & (1<<tsYearBits - 1))
	return t
}

// DecodeTimestamp reads a 4-byte little-endian packed timestamp. Shorter
// input is zero padded.
func DecodeTimestamp(b []byte) DeviceTimestamp {
	return UnpackTimestamp(Uint32LE(b))
}

// EncodeTimestamp packs t into four little-endian bytes.
func EncodeTimestamp(t DeviceTimestamp) []byte {
	return PutUint32LE(t.Pack())
}

// TimestampFromTime builds a DeviceTimestamp from a time, in that time's
// location. Years the wire format cannot carry return ErrTimestampRange.
func TimestampFromTime(tm time.Time) (DeviceTimestamp, error) {
	if tm.Year() < MinTimestampYear || tm.Year() > MaxTimestampYear {
		return DeviceTimestamp{}, fmt.Errorf("%w: %d", ErrTimestampRange, tm.Year())
	}
	return DeviceTimestamp{
		Year:   tm.Year() - MinTimestampYear,
		Month:  int(tm.Month()),
		Day:    tm.Day(),
		Hour:   tm.Hour(),
		Minute: tm.Minute(),
		Second: tm.Second(),
	}, nil
}

// EncodeNow packs the current time reported by clock, in UTC.
func EncodeNow(clock func() time.Time) ([]byte, error) {
	ts, err := TimestampFromTime(clock().UTC())
	if err != nil {
		return nil, err
	}
	return EncodeTimestamp(ts), nil
}

// ParseTimestamp converts text into a DeviceTimestamp. It accepts a full
// "YYYY-MM-DD HH:MM:SS" value, or "HH:MM" which is placed on the date of ref.
func ParseTimestamp(text string, ref time.Time) (DeviceTimestamp, error) {
	if tm, err := time.Parse(TimestampLayout, text); err == nil {
		ts, err := TimestampFromTime(tm)
		if err != nil {
			return DeviceTimestamp{}, fmt.Errorf("timestamp %q: %w", text, err)
		}
		return ts, nil
	}
	clock, err := time.Parse("15:04", text)
	if err != nil {
		return DeviceTimestamp{}, fmt.Errorf("timestamp %q: want %q or HH:MM", text, TimestampLayout)
	}
	t, err := TimestampFromTime(ref)
	if err != nil {
		return DeviceTimestamp{}, fmt.Errorf("timestamp %q: %w", text, err)
	}
	t.Hour = clock.Hour()
	t.Minute = clock.Minute()
	t.Second = 0
	return t, nil
}

// MarshalText renders the timestamp in TimestampLayout form.
func (t DeviceTimestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
