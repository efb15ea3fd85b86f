package reminder

import (
	"fmt"
	"strings"
	"time"
)

// Text is the message sent for job. One occurrence gets a sentence,
// several get a bulleted list.
func Text(job ReminderJob) string {
	mins := int(LeadTime / time.Minute)
	at := job.Start().Format("15:04")
	if len(job.Occurrences) == 1 {
		return fmt.Sprintf("Reminder: %s starts in %d minutes (%s)!", job.Occurrences[0].Name, mins, at)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Reminder: the following activities start in %d minutes (%s):", mins, at)
	for _, o := range job.Occurrences {
		b.WriteString("\n• ")
		b.WriteString(o.Name)
	}
	return b.String()
}
