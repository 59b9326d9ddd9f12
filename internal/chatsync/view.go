package chatsync

import (
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/models"
)

// ComputeReadStatus derives the status shown next to the viewer's own
// messages. In 1:1 chats a message is read once the counterpart appears in
// its read receipts. Group chats always report sent: per-member aggregation
// is a policy question deliberately left out of the view.
func ComputeReadStatus(msg *models.Message, chat *models.Chat, viewerID string) models.MessageStatus {
	if chat.IsGroup {
		return models.StatusSent
	}
	other, ok := chat.Counterpart(viewerID)
	if ok && msg.ReadByUser(other) {
		return models.StatusRead
	}
	if msg.Status == models.StatusDelivered {
		return models.StatusDelivered
	}
	return models.StatusSent
}

// DateGroup is one calendar day of the log in the viewer's time zone.
type DateGroup struct {
	Label    string
	Date     time.Time
	Messages []models.Message
}

const dateLabelFormat = "January 2, 2006"

// GroupByDate partitions an ordered log by calendar date. A new group starts
// at the first message and whenever the date differs from the previous one.
func GroupByDate(msgs []models.Message, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DateGroup
	for _, m := range msgs {
		local := m.Timestamp.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, DateGroup{
				Label: day.Format(dateLabelFormat),
				Date:  day,
			})
		}
		groups[len(groups)-1].Messages = append(groups[len(groups)-1].Messages, m)
	}
	return groups
}
