package llm

import (
	"fmt"

	"github.com/lazypower/keepstreak/internal/habit"
)

// NotificationPrompt asks for a single short push-notification line about
// habitName for the given trigger.
func NotificationPrompt(habitName string, trigger habit.Trigger) string {
	var situation string
	switch trigger {
	case habit.TriggerStreakFreeze:
		situation = fmt.Sprintf(`The user missed "%s" yesterday, so one of their monthly streak freezes was used to keep the streak alive.
Let them know the streak is safe this time and nudge them to get back on track today.`, habitName)
	case habit.TriggerReminder:
		situation = fmt.Sprintf(`It is the time the user picked for their daily "%s" reminder.
Remind them to do it now.`, habitName)
	default:
		situation = fmt.Sprintf(`The user has not logged "%s" for several days.
Gently encourage them to pick it back up today.`, habitName)
	}

	return fmt.Sprintf(`You write push notifications for a habit tracking app.

%s

Rules:
- One sentence, at most 20 words
- Warm and direct, no guilt
- Mention the habit by name
- No emoji, no hashtags, no quotes
- Return ONLY the notification text`, situation)
}
