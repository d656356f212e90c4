package alarmmate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Weekday is a school weekday. Saturday and Sunday never carry alarms.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays lists the five alarm-bearing days in scheduling order.
var Weekdays = [5]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayNames = [5]string{"Mon", "Tue", "Wed", "Thu", "Fri"}

func (d Weekday) String() string {
	if d < Monday || d > Friday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts the short day name ("Mon".."Fri").
func ParseWeekday(s string) (Weekday, error) {
	for i, n := range weekdayNames {
		if n == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekdayOf maps a calendar date to a school weekday.
// ok is false on Saturday and Sunday.
func WeekdayOf(t time.Time) (Weekday, bool) {
	switch t.Weekday() {
	case time.Monday:
		return Monday, true
	case time.Tuesday:
		return Tuesday, true
	case time.Wednesday:
		return Wednesday, true
	case time.Thursday:
		return Thursday, true
	case time.Friday:
		return Friday, true
	}
	return 0, false
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	wd, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = wd
	return nil
}

// timeGo maps a school weekday to the stdlib weekday.
func (d Weekday) timeGo() time.Weekday {
	return time.Weekday(int(time.Monday) + int(d))
}

// TimeGo returns the corresponding time.Weekday.
func (d Weekday) TimeGo() time.Weekday { return d.timeGo() }

// TimeOfDay is a wall-clock minute, serialized as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On anchors the wall-clock time onto the calendar date of ref.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// Rect is a detector bounding box, normalized to [0,1] in both axes.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX returns the horizontal center of the box.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }

// CenterY returns the vertical center of the box.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// DetectedSlot is one labeled box from the timetable detector.
// WeekdayIndex and HourSlot may be negative when the detector reports raw
// boxes only; derivation then falls back to box geometry.
type DetectedSlot struct {
	ClassIndex   int  `json:"class_index"`
	WeekdayIndex int  `json:"weekday_index"`
	HourSlot     int  `json:"hour_slot"`
	Box          Rect `json:"box"`
}

const (
	// DefaultAlarmOffsetHours is subtracted from the first class hour.
	DefaultAlarmOffsetHours = 1

	// DefaultAlarmHour is the final alarm for a day with no detected class.
	DefaultAlarmHour = 8
)

// DaySchedule is the persisted alarm record for one weekday.
type DaySchedule struct {
	Day              Weekday   `json:"day"`
	FirstClassHour   *int      `json:"first_class_hour,omitempty"`
	AlarmOffsetHours int       `json:"alarm_offset_hours"`
	FinalAlarm       TimeOfDay `json:"final_alarm"`
	UserOverridden   bool      `json:"user_overridden"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultDaySchedule is the record for a never-initialized day: 08:00 alarm,
// no detected class, 1h offset.
func DefaultDaySchedule(day Weekday) DaySchedule {
	return DaySchedule{
		Day:              day,
		AlarmOffsetHours: DefaultAlarmOffsetHours,
		FinalAlarm:       TimeOfDay{Hour: DefaultAlarmHour},
	}
}

// Armed reports whether this day participates in next-fire computation.
// A day is armed once a class was detected for it or the user set its alarm
// by hand; the bare 08:00 default is display-only.
func (d DaySchedule) Armed() bool {
	return d.FirstClassHour != nil || d.UserOverridden
}

// WeeklyAlarmSet maps every school weekday to its schedule. All five keys
// are always present.
type WeeklyAlarmSet map[Weekday]DaySchedule

// DefaultWeeklyAlarmSet returns a fully populated set of defaults.
func DefaultWeeklyAlarmSet() WeeklyAlarmSet {
	set := make(WeeklyAlarmSet, len(Weekdays))
	for _, day := range Weekdays {
		set[day] = DefaultDaySchedule(day)
	}
	return set
}

// PendingAlarm is the single outstanding delivery registration.
type PendingAlarm struct {
	ID        string    `json:"id"`
	FireAt    time.Time `json:"fire_at"`
	SourceDay Weekday   `json:"source_day"`
}

// AlarmEvent is a single entry in the engine's event log.
type AlarmEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // ARMED | FIRED | DISMISSED | OVERRIDE | ANALYSIS | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// User is an account of the mobile client.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
