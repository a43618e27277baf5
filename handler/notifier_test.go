package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slacktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/handler"
)

func TestNotifierBroadcast(t *testing.T) {
	var postMsg []map[string]string

	srv := slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/auth.test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"user_id":"UBOT"}`))
		}))

		c.Handle("/conversations.list", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := struct {
				OK       bool `json:"ok"`
				Channels []struct {
					ID         string `json:"id"`
					Name       string `json:"name"`
					IsArchived bool   `json:"is_archived"`
				} `json:"channels"`
			}{
				OK: true,
				Channels: []struct {
					ID         string `json:"id"`
					Name       string `json:"name"`
					IsArchived bool   `json:"is_archived"`
				}{
					{ID: "CSEC", Name: "sec-incidents", IsArchived: false},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		}))

		c.Handle("/chat.postMessage", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			postMsg = append(postMsg, map[string]string{
				"channel": r.FormValue("channel"),
				"blocks":  r.FormValue("blocks"),
			})
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
	})
	go srv.Start()
	defer srv.Stop()

	api := slack.New("dummy", slack.OptionAPIURL(srv.GetAPIURL()))
	slackRepo := repository.NewSlackRepository(api)

	incident := &entity.Incident{
		ID:       "inc-1",
		Category: entity.CategoryRansomware,
		Asset:    "ws-042",
		Severity: entity.SeverityCritical,
		Status:   entity.IncidentStatusOpen,
	}

	// unknown channels are skipped, known ones receive the message
	notifier := handler.NewNotifier(slackRepo, []string{"sec-incidents", "no-such-channel"}, "here")

	err := notifier.IncidentOpened(incident)
	require.NoError(t, err)
	require.Len(t, postMsg, 1)
	assert.Equal(t, "CSEC", postMsg[0]["channel"])
	assert.Contains(t, postMsg[0]["blocks"], "ws-042")

	postMsg = nil
	err = notifier.Announce(context.Background(), incident, "containment started")
	require.NoError(t, err)
	require.Len(t, postMsg, 1)
	assert.Contains(t, postMsg[0]["blocks"], "containment started")

	// escalations carry the configured mention
	postMsg = nil
	err = notifier.Escalation(incident, "1h30m")
	require.NoError(t, err)
	require.Len(t, postMsg, 1)
	assert.Contains(t, postMsg[0]["blocks"], "!here")
}

// staleCacheSlackRepo knows the channel only by ID, and only after the
// cache has been flushed, like a channel created after startup.
type staleCacheSlackRepo struct {
	flushed bool
	posted  []string
}

func (r *staleCacheSlackRepo) GetChannelByName(_ string) (*slack.Channel, error) {
	return nil, repository.ErrSlackNotFound
}

func (r *staleCacheSlackRepo) GetChannelByID(id string) (*slack.Channel, error) {
	if r.flushed && id == "CNEW" {
		channel := &slack.Channel{}
		channel.ID = id
		return channel, nil
	}
	return nil, repository.ErrSlackNotFound
}

func (r *staleCacheSlackRepo) PostMessage(channelID string, _ ...slack.MsgOption) error {
	r.posted = append(r.posted, channelID)
	return nil
}

func (r *staleCacheSlackRepo) FlushChannelCache() { r.flushed = true }

func TestNotifierFindsChannelByIDAfterCacheFlush(t *testing.T) {
	repo := &staleCacheSlackRepo{}
	notifier := handler.NewNotifier(repo, []string{"CNEW"}, "here")

	incident := &entity.Incident{
		ID:       "inc-1",
		Category: entity.CategoryRansomware,
		Asset:    "ws-042",
		Severity: entity.SeverityHigh,
		Status:   entity.IncidentStatusOpen,
	}

	require.NoError(t, notifier.IncidentOpened(incident))
	assert.True(t, repo.flushed)
	assert.Equal(t, []string{"CNEW"}, repo.posted)
}
