package domain

import "time"

// ComputeScheduledAt decides when the payment-request email goes out.
// leadHours nil or 0 requests an immediate send, -1 schedules it at
// consultation end (billing after the fact), and a positive value
// schedules it that many hours before the slot starts.
func ComputeScheduledAt(leadHours *int, start, end, now time.Time) time.Time {
	if leadHours == nil || *leadHours == 0 {
		return now
	}
	if *leadHours == -1 {
		return end
	}
	return start.Add(-time.Duration(*leadHours) * time.Hour)
}

// DueNow reports whether a scheduled send is due. A missing schedule
// means send immediately.
func DueNow(scheduledAt *time.Time, now time.Time) bool {
	if scheduledAt == nil {
		return true
	}
	return !scheduledAt.After(now)
}
