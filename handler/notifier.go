package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/presentation/blocks"
)

// Notifier posts incident lifecycle messages to the announcement channels.
type Notifier struct {
	slackRepository repository.SlackRepositoryer
	channels        []string
	mention         string
}

func NewNotifier(slackRepository repository.SlackRepositoryer, channels []string, mention string) *Notifier {
	return &Notifier{
		slackRepository: slackRepository,
		channels:        channels,
		mention:         mention,
	}
}

func (n *Notifier) broadcast(msgBlocks []slack.Block) error {
	var lastErr error
	for _, name := range n.channels {
		channel, err := n.lookupChannel(name)
		if err != nil {
			if err == repository.ErrSlackNotFound {
				slog.Error("Announcement channel not found", slog.String("channel", name))
				continue
			}
			lastErr = fmt.Errorf("failed to resolve channel %s: %w", name, err)
			continue
		}
		if err := n.slackRepository.PostMessage(channel.ID, slack.MsgOptionBlocks(msgBlocks...)); err != nil {
			lastErr = fmt.Errorf("failed to post to %s: %w", name, err)
		}
	}
	return lastErr
}

// lookupChannel accepts a channel name or ID. A miss flushes the channel
// cache once, so channels created after startup are still found.
func (n *Notifier) lookupChannel(name string) (*slack.Channel, error) {
	channel, err := n.slackRepository.GetChannelByName(name)
	if err == repository.ErrSlackNotFound {
		channel, err = n.slackRepository.GetChannelByID(name)
	}
	if err == repository.ErrSlackNotFound {
		n.slackRepository.FlushChannelCache()
		channel, err = n.slackRepository.GetChannelByName(name)
		if err == repository.ErrSlackNotFound {
			channel, err = n.slackRepository.GetChannelByID(name)
		}
	}
	return channel, err
}

func (n *Notifier) IncidentOpened(incident *entity.Incident) error {
	return n.broadcast(blocks.IncidentOpened(incident))
}

func (n *Notifier) SeverityRaised(incident *entity.Incident, previous entity.Severity) error {
	return n.broadcast(blocks.SeverityRaised(incident, previous))
}

func (n *Notifier) ContainmentCompleted(incident *entity.Incident, executed, skipped int) error {
	return n.broadcast(blocks.ContainmentCompleted(incident, executed, skipped))
}

func (n *Notifier) ContainmentFailed(incident *entity.Incident, failed int) error {
	return n.broadcast(blocks.ContainmentFailed(incident, failed, n.mention))
}

func (n *Notifier) Escalation(incident *entity.Incident, elapsed string) error {
	return n.broadcast(blocks.Escalation(incident, elapsed, n.mention))
}

func (n *Notifier) IncidentResolved(incident *entity.Incident) error {
	return n.broadcast(blocks.IncidentResolved(incident))
}

func (n *Notifier) IncidentClosed(incident *entity.Incident) error {
	return n.broadcast(blocks.IncidentClosed(incident))
}

// Announce implements the executor's notify action.
func (n *Notifier) Announce(_ context.Context, incident *entity.Incident, message string) error {
	return n.broadcast(blocks.ContainmentAnnouncement(incident, message))
}
