package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBucket(t *testing.T) {
	scheduled := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	t.Run("recurring tier buckets by calendar day", func(t *testing.T) {
		c := &Campaign{Type: TypeCollection91Recurring}
		bucket := DayBucket(c, scheduled)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), bucket)
	})

	t.Run("one-shot tiers use the sentinel day", func(t *testing.T) {
		sentinel := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
		for _, typ := range []CampaignType{TypeReminder3160, TypeReminder6190, TypeCollection91Once} {
			c := &Campaign{Type: typ}
			assert.Equal(t, sentinel, DayBucket(c, scheduled), string(typ))
		}
	})

	t.Run("recurring bucket is timezone independent", func(t *testing.T) {
		c := &Campaign{Type: TypeCollection91Recurring}
		est := time.FixedZone("EST", -5*3600)
		local := time.Date(2026, 3, 15, 20, 0, 0, 0, est) // 2026-03-16 01:00 UTC
		assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), DayBucket(c, local))
	})
}

func TestNewScheduledSend(t *testing.T) {
	c := &Campaign{ID: 3, Type: TypeReminder3160}
	scheduled := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("creates pending row", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "Billing@Example.COM ", scheduled, false)
		require.NoError(t, err)

		assert.NotEqual(t, "", s.ID.String())
		assert.Equal(t, int64(3), s.CampaignID)
		assert.Equal(t, int64(1001), s.OrderID)
		assert.Equal(t, "billing@example.com", s.RecipientEmail)
		assert.Equal(t, ScheduleStatusPending, s.Status)
		assert.Equal(t, 0, s.AttemptCount)
		assert.False(t, s.IsTest)
	})

	t.Run("rejects empty recipient", func(t *testing.T) {
		_, err := NewScheduledSend(c, 1001, "", scheduled, false)
		assert.Error(t, err)
	})
}

func TestNewSkippedSend(t *testing.T) {
	c := &Campaign{ID: 3, Type: TypeReminder3160}
	scheduled := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	s, err := NewSkippedSend(c, 1001, "a@b.com", scheduled, SkipReasonOptedOut, false)
	require.NoError(t, err)
	assert.Equal(t, ScheduleStatusSkipped, s.Status)
	assert.Equal(t, SkipReasonOptedOut, s.SkipReason)
}

func TestScheduledSend_Lifecycle(t *testing.T) {
	c := &Campaign{ID: 1, Type: TypeReminder3160}
	scheduled := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	t.Run("attempt then sent", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "a@b.com", scheduled, false)
		require.NoError(t, err)

		s.RegisterAttempt(now)
		assert.Equal(t, 1, s.AttemptCount)
		require.NotNil(t, s.LastAttemptAt)

		require.NoError(t, s.MarkSent("<msg-id@mail>", now))
		assert.Equal(t, ScheduleStatusSent, s.Status)
		assert.Equal(t, "<msg-id@mail>", s.MessageID)
		require.NotNil(t, s.SentAt)
	})

	t.Run("sent row cannot be re-sent", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "a@b.com", scheduled, false)
		require.NoError(t, err)
		require.NoError(t, s.MarkSent("m1", now))

		err = s.MarkSent("m2", now)
		assert.Error(t, err)
		assert.Equal(t, "m1", s.MessageID)
	})

	t.Run("failed", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "a@b.com", scheduled, false)
		require.NoError(t, err)

		s.RegisterAttempt(now)
		s.MarkFailed("smtp: connection refused", now)
		assert.Equal(t, ScheduleStatusFailed, s.Status)
		assert.Equal(t, "smtp: connection refused", s.ErrorDetail)
	})

	t.Run("failed row can be retried to sent", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "a@b.com", scheduled, false)
		require.NoError(t, err)

		s.RegisterAttempt(now)
		s.MarkFailed("smtp: connection refused", now)

		s.RegisterAttempt(now)
		require.NoError(t, s.MarkSent("<msg-retry@mail>", now))
		assert.Equal(t, ScheduleStatusSent, s.Status)
	})

	t.Run("skipped at send time", func(t *testing.T) {
		s, err := NewScheduledSend(c, 1001, "a@b.com", scheduled, false)
		require.NoError(t, err)

		s.MarkSkipped(SkipReasonInvoicePaid, now)
		assert.Equal(t, ScheduleStatusSkipped, s.Status)
		assert.Equal(t, SkipReasonInvoicePaid, s.SkipReason)
	})
}

func TestScheduleStatus_IsValid(t *testing.T) {
	for _, s := range []ScheduleStatus{ScheduleStatusPending, ScheduleStatusSent, ScheduleStatusFailed, ScheduleStatusSkipped} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, ScheduleStatus("queued").IsValid())
}
