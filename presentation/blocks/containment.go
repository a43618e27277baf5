package blocks

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
)

func ContainmentCompleted(incident *entity.Incident, executed, skipped int) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "✅ Containment completed", false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Incident:* %s", incident.ID),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Playbook:* %s", incident.PlaybookID),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Actions:* %d executed, %d skipped", executed, skipped),
					false,
					false,
				),
			},
			nil,
		),
	}
}

func ContainmentFailed(incident *entity.Incident, failed int, mention string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				AddNotification(fmt.Sprintf("❌ Containment of incident %s failed: %d action(s) did not complete. Manual response required.",
					incident.ID, failed), mention),
				false,
				false,
			),
			nil,
			nil,
		),
	}
}

func ContainmentAnnouncement(incident *entity.Incident, message string) []slack.Block {
	if message == "" {
		message = "Automated containment is running."
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("📣 %s (incident %s, %s on %s)", message, incident.ID, incident.Category, incident.Asset),
				false,
				false,
			),
			nil,
			nil,
		),
	}
}
