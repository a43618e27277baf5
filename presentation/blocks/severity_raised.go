package blocks

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
)

func SeverityRaised(incident *entity.Incident, previous entity.Severity) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("⬆️ Severity of incident %s was raised: %s %s → %s %s",
					incident.ID,
					SeverityEmojiMap[previous], previous,
					SeverityEmojiMap[incident.Severity], incident.Severity),
				false,
				false,
			),
			nil,
			nil,
		),
	}
}
