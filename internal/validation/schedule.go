package validation

import (
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// BookingWindowDays is how far ahead a call can be booked.
	BookingWindowDays = 30

	// OpeningTime and ClosingTime bound bookable call times.
	OpeningTime = "09:00"
	ClosingTime = "20:00"
)

// Schedule messages.
const (
	MsgDate = "Please choose a date between tomorrow and 30 days from today"
	MsgTime = "Please choose a time between 09:00 and 20:00"
)

// DateBounds returns the first and last bookable dates relative to now,
// formatted as YYYY-MM-DD.
func DateBounds(now time.Time) (string, string) {
	return now.AddDate(0, 0, 1).Format(dateLayout), now.AddDate(0, 0, BookingWindowDays).Format(dateLayout)
}

// Schedule validates a booking date and time picked relative to now. Both
// fields are required.
func Schedule(date, clock string, now time.Time) error {
	errs := &Errors{}
	if msg := check(Required("date", date)); msg != "" {
		errs.Add("date", msg)
	} else if !dateInWindow(date, now) {
		errs.Add("date", MsgDate)
	}
	if msg := check(Required("time", clock)); msg != "" {
		errs.Add("time", msg)
	} else if !timeInHours(clock) {
		errs.Add("time", MsgTime)
	}
	return errs.Err()
}

func dateInWindow(date string, now time.Time) bool {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return false
	}
	first, last := DateBounds(now)
	// YYYY-MM-DD compares lexically.
	return date >= first && date <= last
}

func timeInHours(clock string) bool {
	if _, err := time.Parse(timeLayout, clock); err != nil {
		return false
	}
	return clock >= OpeningTime && clock <= ClosingTime
}
