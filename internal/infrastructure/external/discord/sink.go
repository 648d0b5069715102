package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/user"
)

// Button custom ids on decision request messages. The decision trigger is
// keyed by the message id, so the ids only carry the chosen outcome.
const (
	CustomIDApprove = "solve:approve"
	CustomIDDecline = "solve:decline"
)

const (
	colorPending  = 0xf1c40f
	colorApproved = 0x2ecc71
	colorDeclined = 0xe74c3c
)

// Sink posts approval requests and announcements to the configured
// channels. It implements workflow.NotificationSink.
type Sink struct {
	client *Client
	cfg    config.DiscordConfig
}

// NewSink creates the sink.
func NewSink(client *Client, cfg config.DiscordConfig) *Sink {
	return &Sink{client: client, cfg: cfg}
}

var _ workflow.NotificationSink = (*Sink)(nil)

// PublishDecisionRequest posts the moderation request with approve/decline
// buttons and returns the message id as the decision ref.
func (s *Sink) PublishDecisionRequest(ctx context.Context, req workflow.DecisionRequest) (int64, error) {
	payload := MessagePayload{
		Embeds: []Embed{{
			Title: fmt.Sprintf("Solve submitted: %s", req.ChallengeName),
			Color: colorPending,
			Fields: []EmbedField{
				{Name: "Category", Value: req.Category, Inline: true},
				{Name: "Submitted by", Value: mention(req.SubmitterID), Inline: true},
				{Name: "Solvers", Value: mentionAll(req.Participants)},
				{Name: "Flag", Value: "`" + req.Flag + "`"},
			},
		}},
		Components: []Component{{
			Type: ComponentActionRow,
			Components: []Component{
				{Type: ComponentButton, Style: ButtonStyleSuccess, Label: "Approve", CustomID: CustomIDApprove},
				{Type: ComponentButton, Style: ButtonStyleDanger, Label: "Decline", CustomID: CustomIDDecline},
			},
		}},
	}

	msg, err := s.client.CreateMessage(ctx, s.cfg.ApprovalChannelID, payload)
	if err != nil {
		return 0, shared.WrapError("discord", "PublishDecisionRequest",
			shared.ErrSideEffectFailed, "could not post decision request", err)
	}
	ref, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return 0, shared.WrapError("discord", "PublishDecisionRequest",
			shared.ErrExternalService, "unparseable message id", err)
	}
	return ref, nil
}

// AnnounceDecision posts the decision outcome.
func (s *Sink) AnnounceDecision(ctx context.Context, a workflow.DecisionAnnouncement) error {
	embed := Embed{Title: fmt.Sprintf("Solve %s: %s", a.Status.String(), a.ChallengeName)}
	switch a.Status {
	case solve.StatusApproved:
		embed.Color = colorApproved
		embed.Description = fmt.Sprintf("%s earned %s points each. Decided by %s.",
			mentionAll(a.Participants), user.FormatPoints(a.AwardTenths), mention(a.DeciderID))
	default:
		embed.Color = colorDeclined
		embed.Description = fmt.Sprintf("Declined by %s.", mention(a.DeciderID))
	}

	_, err := s.client.CreateMessage(ctx, s.cfg.AnnouncementChannelID, MessagePayload{Embeds: []Embed{embed}})
	if err != nil {
		return shared.WrapError("discord", "AnnounceDecision",
			shared.ErrSideEffectFailed, "could not post decision announcement", err)
	}
	return nil
}

// AnnounceRankUp posts a rank-up message.
func (s *Sink) AnnounceRankUp(ctx context.Context, userID int64, rankName string) error {
	content := fmt.Sprintf(":tada: %s ranked up to **%s**!", mention(userID), rankName)
	_, err := s.client.CreateMessage(ctx, s.cfg.AnnouncementChannelID, MessagePayload{Content: content})
	if err != nil {
		return shared.WrapError("discord", "AnnounceRankUp",
			shared.ErrSideEffectFailed, "could not post rank-up announcement", err)
	}
	return nil
}

func mention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}

func mentionAll(userIDs []int64) string {
	parts := make([]string, len(userIDs))
	for i, id := range userIDs {
		parts[i] = mention(id)
	}
	return strings.Join(parts, " ")
}
