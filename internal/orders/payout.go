package orders

import "time"

// NextPayoutDate returns the payout date for an order delivered at from.
// On the payout weekday itself the following occurrence is skipped and the
// date lands two weeks out.
func NextPayoutDate(from time.Time, weekday time.Weekday) time.Time {
	current := from.Weekday()
	if current == weekday {
		return from.AddDate(0, 0, 14)
	}
	return from.AddDate(0, 0, (7+int(weekday)-int(current))%7)
}
