package blocks

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
)

var SeverityEmojiMap = map[entity.Severity]string{
	entity.SeverityInfo:     "⚪",
	entity.SeverityLow:      "🟢",
	entity.SeverityMedium:   "🟡",
	entity.SeverityHigh:     "🟠",
	entity.SeverityCritical: "🔴",
}

func IncidentOpened(incident *entity.Incident) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "🚨 A security incident has been opened", false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Incident:* %s", incident.ID),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Category:* %s", incident.Category),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Severity:* %s %s", SeverityEmojiMap[incident.Severity], incident.Severity),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Affected asset:* %s", incident.Asset),
					false,
					false,
				),
			},
			nil,
		),
	}
}
