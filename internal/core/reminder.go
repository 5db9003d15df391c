package core

import (
	"errors"
	"strings"
	"time"
)

type ReminderFrequency string

const (
	FrequencyNone    ReminderFrequency = ""
	FrequencyOnce    ReminderFrequency = "once"
	FrequencyDaily   ReminderFrequency = "daily"
	FrequencyWeekly  ReminderFrequency = "weekly"
	FrequencyMonthly ReminderFrequency = "monthly"
)

// ReminderFrequencies lists the selectable frequencies, none first.
var ReminderFrequencies = []ReminderFrequency{FrequencyNone, FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly}

const (
	maxReminderTitle   = 200
	maxPreAlertDays    = 30
	maxReminderDetails = 1000
)

var (
	ErrEmptyReminderTitle = errors.New("reminder title is required")
	ErrReminderTitleLong  = errors.New("reminder title too long (max 200 characters)")
	ErrReminderDetailLong = errors.New("reminder description too long (max 1000 characters)")
	ErrUnknownFrequency   = errors.New("unknown reminder frequency")
	ErrReminderNeedsDue   = errors.New("a one-time reminder needs a due date")
	ErrInvalidPreAlert    = errors.New("pre-alert must be between 0 and 30 days")
)

// Reminder is a user's to-do about money: a bill, a transfer, a review.
type Reminder struct {
	ID                 int64
	UserID             int64
	Title              string
	Description        string
	DueAt              *time.Time
	Frequency          ReminderFrequency
	PreAlertOffsetDays int
	Completed          bool
	NotifyEmail        bool
	NotifyInApp        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (f ReminderFrequency) Valid() bool {
	for _, known := range ReminderFrequencies {
		if f == known {
			return true
		}
	}
	return false
}

func (r Reminder) Validate() error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return ErrEmptyReminderTitle
	}
	if len(title) > maxReminderTitle {
		return ErrReminderTitleLong
	}
	if len(r.Description) > maxReminderDetails {
		return ErrReminderDetailLong
	}
	if !r.Frequency.Valid() {
		return ErrUnknownFrequency
	}
	if r.Frequency == FrequencyOnce && r.DueAt == nil {
		return ErrReminderNeedsDue
	}
	if r.PreAlertOffsetDays < 0 || r.PreAlertOffsetDays > maxPreAlertDays {
		return ErrInvalidPreAlert
	}
	if r.DueAt != nil {
		if err := DateOf(*r.DueAt).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Overdue reports whether an open reminder's due time has passed.
func (r Reminder) Overdue(now time.Time) bool {
	return !r.Completed && r.DueAt != nil && r.DueAt.Before(now)
}

// AlertAt is when the reminder should start surfacing, PreAlertOffsetDays
// before it is due. ok is false without a due time.
func (r Reminder) AlertAt() (t time.Time, ok bool) {
	if r.DueAt == nil {
		return time.Time{}, false
	}
	return r.DueAt.AddDate(0, 0, -r.PreAlertOffsetDays), true
}
