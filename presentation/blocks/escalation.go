package blocks

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
)

func Escalation(incident *entity.Incident, elapsed, mention string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", AddNotification("⏰ Containment SLA exceeded", mention), false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Incident:* %s", incident.ID),
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
					fmt.Sprintf("*Open for:* %s", elapsed),
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
