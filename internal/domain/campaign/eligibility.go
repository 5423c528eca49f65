package campaign

// IsEligible decides membership of an invoice in a dunning tier based only on
// its days outstanding and the campaign definition. It is a pure function; the
// scheduler layers dedup and opt-out on top.
//
// Window boundaries are inclusive on both sides, so a record at exactly 60
// days matches both the 31-60 and 61-90 tiers. The overlap is deliberate and
// preserved from observed behavior: each campaign is deduplicated
// independently, never against its neighbors.
func IsEligible(daysOutstanding int, c *Campaign) bool {
	switch c.Type {
	case TypeReminder3160:
		return daysOutstanding >= 30 && daysOutstanding <= 60
	case TypeReminder6190:
		return daysOutstanding >= 60 && daysOutstanding <= 90
	case TypeCollection91Once:
		return daysOutstanding >= 90
	case TypeCollection91Recurring:
		// Recurring collections start a full interval past the 91-day mark and
		// then land on a fixed cadence, not every day past 91.
		interval := c.RecurringInterval()
		if daysOutstanding < 91+interval {
			return false
		}
		return (daysOutstanding-91)%interval == 0
	}
	return false
}
