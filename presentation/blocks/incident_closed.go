package blocks

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
)

func IncidentResolved(incident *entity.Incident) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("🎉 Incident %s (%s on %s) was marked resolved.",
					incident.ID, incident.Category, incident.Asset),
				false,
				false,
			),
			nil,
			nil,
		),
	}
}

func IncidentClosed(incident *entity.Incident) []slack.Block {
	text := fmt.Sprintf("📕 Incident %s was closed.", incident.ID)
	if incident.ReportURL != "" {
		text = fmt.Sprintf("%s Post-incident report: %s", text, incident.ReportURL)
	}
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", text, false, false),
			nil,
			nil,
		),
	}
}
