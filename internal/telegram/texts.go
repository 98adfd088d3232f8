package telegram

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// UI texts in English. All messages are sent with HTML parse mode.
const (
	helpText = "🏋️ <b>Exercise Module</b>\n" +
		"This module encourages good exercise!\n\n" +
		"/list - users that have this module enabled\n" +
		"/check &lt;user&gt; - exercise the user has done today\n" +
		"/notify &lt;user&gt; &lt;hour&gt; - check the user every day at that hour\n" +
		"/unnotify &lt;user&gt; &lt;hour&gt; - stop checking at that hour\n" +
		"/hours &lt;user&gt; - hours the user is checked at"

	listTitle     = "👥 <b>Exercise Module Users</b>"
	listEmptyText = "No users have this module enabled."

	checkUsage    = "Usage: /check &lt;user&gt;"
	notifyUsage   = "Usage: /notify &lt;user&gt; &lt;hour&gt; (e.g. /notify alice 20)"
	unnotifyUsage = "Usage: /unnotify &lt;user&gt; &lt;hour&gt;"
	hoursUsage    = "Usage: /hours &lt;user&gt;"
	badHourText   = "Invalid hour. Use a whole hour between 0 and 23, e.g. 8 or 20:00."

	userNotFoundFmt    = "User %s not found or <code>%s</code> isn't active for this user."
	checkFailedFmt     = "⚠️ Sorry, I couldn't check that: %s"
	notifyAddedFmt     = "✅ %s will be checked every day at %s."
	notifyExistsFmt    = "%s is already checked at %s."
	unnotifyRemovedFmt = "🗑 %s will no longer be checked at %s."
	unnotifyMissingFmt = "%s was not checked at %s."
	hoursFmt           = "🕘 %s is checked at: %s"
	hoursNoneFmt       = "%s has no check hours."

	alertTitle  = "<b>Exercise Goal</b>"
	checkTitle  = "<b>Check Exercise Data</b>"
	noData      = "No Data Yet"
	footerFmt   = "Data retrieved @ %s"
	footerStamp = "02/01/2006 15:04:05"
)

// tierLine is the nudge shown under the greeting.
func tierLine(a domain.Alert) string {
	switch a.Tier {
	case domain.TierStaleData:
		return "Your data is out of date! Here's the last health data I have for you"
	case domain.TierApproachingGoal:
		return fmt.Sprintf("You're nearly at the %.0f minute goal, time to do a bit more exercise?", domain.GoalMinutes)
	default:
		if m := a.Snapshot.ActiveMinutes; m != nil && *m > 0 {
			return "You've got a bit to go to meet the goal, time to go work out?"
		}
		return "Don't be a lazy bones! Time to go work out"
	}
}

func tierIcon(t domain.Tier) string {
	if t == domain.TierApproachingGoal {
		return "🟠"
	}
	return "🔴"
}

func renderAlert(mention string, a domain.Alert, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", tierIcon(a.Tier), alertTitle)
	fmt.Fprintf(&b, "Hey %s\n%s\n\n", html.EscapeString(mention), tierLine(a))
	writeStats(&b, a.Snapshot, loc)
	return b.String()
}

func renderCheck(mention string, s domain.Snapshot, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🟢 %s\n", checkTitle)
	fmt.Fprintf(&b, "Here is the latest exercise data I have for %s\n\n", html.EscapeString(mention))
	writeStats(&b, s, loc)
	return b.String()
}

func writeStats(b *strings.Builder, s domain.Snapshot, loc *time.Location) {
	fmt.Fprintf(b, "<b>Exercise Minutes:</b> %s\n", stat(s.ActiveMinutes, "minutes today"))
	fmt.Fprintf(b, "<b>Resting Heartrate:</b> %s\n", stat(s.RestingHeartRate, "bpm"))
	fmt.Fprintf(b, "<b>Step Count:</b> %s", stat(s.StepCount, "steps"))
	if s.CapturedAt > 0 {
		fmt.Fprintf(b, "\n\n<i>"+footerFmt+"</i>", s.CapturedTime(loc).Format(footerStamp))
	}
}

func stat(v *float64, unit string) string {
	if v == nil {
		return noData
	}
	return fmt.Sprintf("%.0f %s", math.Floor(*v), unit)
}
