package dashboard

import (
	"fmt"
	"time"
)

// IST is India Standard Time; every dashboard timestamp is shown in it.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// TeamCode renders a team id as shown to participants, e.g. INC-T-007.
func TeamCode(id int64) string { return fmt.Sprintf("INC-T-%03d", id) }

// ParticipantCode renders a user id as a participant id, e.g. INC-P-042.
func ParticipantCode(id int64) string { return fmt.Sprintf("INC-P-%03d", id) }

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(IST).Format("02 Jan 2006, 03:04 pm")
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(IST).Format("02 Jan 2006")
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(IST).Format("03:04 pm")
}
