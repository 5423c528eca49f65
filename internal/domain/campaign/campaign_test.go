package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCampaign(t *testing.T) {
	t.Run("creates active campaign", func(t *testing.T) {
		c, err := NewCampaign("31-60 Day Reminder", TypeReminder3160, 0, "Reminder: {INVOICE_NUMBER}", "Dear {NAME}")
		require.NoError(t, err)

		assert.Equal(t, "31-60 Day Reminder", c.Name)
		assert.Equal(t, TypeReminder3160, c.Type)
		assert.True(t, c.Active)
		assert.Equal(t, 0, c.RepeatIntervalDays)
		assert.False(t, c.IsRecurring())
	})

	t.Run("recurring campaign gets default interval", func(t *testing.T) {
		c, err := NewCampaign("91+ Recurring", TypeCollection91Recurring, 91, "s", "b")
		require.NoError(t, err)
		assert.True(t, c.IsRecurring())
		assert.Equal(t, DefaultRecurringInterval, c.RepeatIntervalDays)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := NewCampaign("", TypeReminder3160, 0, "s", "b")
		assert.Error(t, err)

		_, err = NewCampaign("x", CampaignType("bogus"), 0, "s", "b")
		assert.Error(t, err)

		_, err = NewCampaign("x", TypeReminder3160, -1, "s", "b")
		assert.Error(t, err)

		_, err = NewCampaign("x", TypeReminder3160, 0, "", "b")
		assert.Error(t, err)
	})
}

func TestCampaign_EnableDisable(t *testing.T) {
	c, err := NewCampaign("x", TypeReminder3160, 0, "s", "b")
	require.NoError(t, err)

	c.Disable()
	assert.False(t, c.Active)

	c.Enable()
	assert.True(t, c.Active)
}

func TestCampaign_EditTemplates(t *testing.T) {
	c, err := NewCampaign("x", TypeReminder3160, 0, "s", "b")
	require.NoError(t, err)

	require.NoError(t, c.EditTemplates("new subject", "new body"))
	assert.Equal(t, "new subject", c.SubjectTemplate)
	assert.Equal(t, "new body", c.BodyTemplate)

	assert.Error(t, c.EditTemplates("", "body"))
	assert.Error(t, c.EditTemplates("subject", ""))
}

func TestCampaign_RecurringInterval(t *testing.T) {
	c := &Campaign{Type: TypeCollection91Recurring}
	assert.Equal(t, DefaultRecurringInterval, c.RecurringInterval())

	c.RepeatIntervalDays = 14
	assert.Equal(t, 14, c.RecurringInterval())
}

func TestCampaignType_Classification(t *testing.T) {
	assert.True(t, TypeReminder3160.IsReminder())
	assert.True(t, TypeReminder6190.IsReminder())
	assert.False(t, TypeCollection91Once.IsReminder())
	assert.True(t, TypeCollection91Once.IsCollection())
	assert.True(t, TypeCollection91Recurring.IsCollection())
}

func TestDunningRun_Lifecycle(t *testing.T) {
	now := time.Now()

	t.Run("complete", func(t *testing.T) {
		r := NewDunningRun(TriggerSourceCron, false)
		assert.Equal(t, RunStatusRunning, r.Status)

		require.NoError(t, r.Complete(now))
		assert.Equal(t, RunStatusCompleted, r.Status)
		require.NotNil(t, r.FinishedAt)

		assert.Error(t, r.Complete(now))
	})

	t.Run("fail", func(t *testing.T) {
		r := NewDunningRun(TriggerSourceManual, true)
		require.NoError(t, r.Fail("sync: gateway unavailable", now))
		assert.Equal(t, RunStatusFailed, r.Status)
		assert.Equal(t, "sync: gateway unavailable", r.ErrorDetail)

		assert.Error(t, r.Fail("again", now))
	})

	t.Run("duration", func(t *testing.T) {
		r := NewDunningRun(TriggerSourceCron, false)
		assert.Equal(t, time.Duration(0), r.Duration())

		finished := r.StartedAt.Add(42 * time.Second)
		require.NoError(t, r.Complete(finished))
		assert.Equal(t, 42*time.Second, r.Duration())
	})
}
