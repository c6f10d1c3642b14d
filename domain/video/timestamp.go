package video

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Timestamp represents a position in a video with millisecond precision
type Timestamp struct {
	Hours   int
	Minutes int
	Seconds float64
}

// clockRegex matches HH:MM:SS or MM:SS, with optional fractional seconds
var clockRegex = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{2}(?:\.\d{1,3})?)$`)

// secondsRegex matches a plain number of seconds
var secondsRegex = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// ParseTimestamp parses HH:MM:SS, MM:SS, or plain seconds such as "95.5"
func ParseTimestamp(s string) (Timestamp, error) {
	if secondsRegex.MatchString(s) {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return FromSeconds(secs), nil
	}

	matches := clockRegex.FindStringSubmatch(s)
	if matches == nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp format %q: expected HH:MM:SS, MM:SS or seconds", s)
	}

	hours := 0
	if matches[1] != "" {
		hours, _ = strconv.Atoi(matches[1])
	}
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.ParseFloat(matches[3], 64)

	if matches[1] != "" && minutes > 59 {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: minutes must be 0-59", s)
	}
	if seconds >= 60 {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: seconds must be 0-59", s)
	}

	return Timestamp{
		Hours:   hours + minutes/60,
		Minutes: minutes % 60,
		Seconds: seconds,
	}, nil
}

// FromSeconds converts a number of seconds into a Timestamp, rounded to the millisecond
func FromSeconds(secs float64) Timestamp {
	if secs < 0 || math.IsNaN(secs) {
		secs = 0
	}
	millis := int64(math.Round(secs * 1000))
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000

	return Timestamp{
		Hours:   int(hours),
		Minutes: int(minutes),
		Seconds: float64(millis) / 1000,
	}
}

// String returns the timestamp in HH:MM:SS.mmm format, as ffmpeg accepts it
func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%06.3f", t.Hours, t.Minutes, t.Seconds)
}

// FileStamp returns the timestamp as HH-MM-SS for use in file names
func (t Timestamp) FileStamp() string {
	return fmt.Sprintf("%02d-%02d-%02d", t.Hours, t.Minutes, int(t.Seconds))
}

// TotalSeconds returns the timestamp as seconds
func (t Timestamp) TotalSeconds() float64 {
	return float64(t.Hours*3600+t.Minutes*60) + t.Seconds
}

// IsZero returns true if the timestamp is 00:00:00
func (t Timestamp) IsZero() bool {
	return t.TotalSeconds() == 0
}

// Before returns true if t is before other
func (t Timestamp) Before(other Timestamp) bool {
	return t.TotalSeconds() < other.TotalSeconds()
}

// After returns true if t is after other
func (t Timestamp) After(other Timestamp) bool {
	return t.TotalSeconds() > other.TotalSeconds()
}

// FormatClock renders seconds as MM:SS for display. Minutes are not wrapped
// into hours, so 75 minutes shows as "75:00"
func FormatClock(secs float64) string {
	if secs < 0 || math.IsNaN(secs) {
		secs = 0
	}
	total := int(secs)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
