package models

// ScheduleEntry is one line of the weekly schedule.
type ScheduleEntry struct {
	Day   string `json:"day"`
	Title string `json:"title"`
}

// Label renders the entry the way the schedule screen lists it.
func (e ScheduleEntry) Label() string {
	return e.Day + " - " + e.Title
}

// WeeklySchedule is served without a store read; schedules are not yet kept
// per student.
func WeeklySchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Day: "Monday", Title: "Math Quiz"},
		{Day: "Wednesday", Title: "Group Project Meeting"},
		{Day: "Friday", Title: "Java Assignment Due"},
	}
}
