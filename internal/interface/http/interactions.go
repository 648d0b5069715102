package http

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
	"github.com/ctf-hub/ctf-community-hub/internal/infrastructure/external/discord"
)

// Interaction and response type constants per the Discord API.
const (
	interactionPing             = 1
	interactionMessageComponent = 3

	responsePong            = 1
	responseChannelMessage  = 4
	responseDeferredUpdate  = 6
	flagEphemeral           = 1 << 6
	maxInteractionBodyBytes = 1 << 20
)

// decideTimeout bounds the asynchronous decision work that runs after the
// webhook has already been acknowledged.
const decideTimeout = 30 * time.Second

// Decider decides pending solves. Satisfied by workflow.Approval.
type Decider interface {
	Decide(ctx context.Context, trig workflow.DecisionTrigger) (*workflow.DecisionResult, error)
}

// Interactions handles the Discord interactions webhook. Component clicks on
// decision request messages are acknowledged immediately with a deferred
// update, then decided asynchronously; Discord retries undelivered webhooks,
// and the workflow tolerates duplicate triggers, so the ack-first order never
// loses a decision.
type Interactions struct {
	decider       Decider
	publicKey     ed25519.PublicKey
	officerRoleID string
	logger        *slog.Logger

	// decided signals completion of the async decision work; tests use it,
	// production leaves it nil.
	decided chan<- struct{}
}

// NewInteractions builds the webhook handler from Discord configuration.
func NewInteractions(cfg config.DiscordConfig, decider Decider, logger *slog.Logger) (*Interactions, error) {
	key, err := hex.DecodeString(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return &Interactions{
		decider:       decider,
		publicKey:     ed25519.PublicKey(key),
		officerRoleID: strconv.FormatInt(cfg.OfficerRoleID, 10),
		logger:        logger.With("component", "interactions"),
	}, nil
}

type interaction struct {
	Type    int                 `json:"type"`
	Data    *interactionData    `json:"data"`
	Member  *interactionMember  `json:"member"`
	Message *interactionMessage `json:"message"`
}

type interactionData struct {
	CustomID string `json:"custom_id"`
}

type interactionMember struct {
	User  interactionUser `json:"user"`
	Roles []string        `json:"roles"`
}

type interactionUser struct {
	ID string `json:"id"`
}

type interactionMessage struct {
	ID string `json:"id"`
}

type interactionResponse struct {
	Type int                      `json:"type"`
	Data *interactionResponseData `json:"data,omitempty"`
}

type interactionResponseData struct {
	Content string `json:"content,omitempty"`
	Flags   int    `json:"flags,omitempty"`
}

// Handle verifies and dispatches one interaction webhook.
func (h *Interactions) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInteractionBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(r.Header, body) {
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case interactionPing:
		writeJSON(w, http.StatusOK, interactionResponse{Type: responsePong})
	case interactionMessageComponent:
		h.handleComponent(w, in)
	default:
		// Interaction types the hub does not use get an empty ack so
		// Discord stops retrying.
		writeJSON(w, http.StatusOK, interactionResponse{Type: responseDeferredUpdate})
	}
}

// verifySignature checks the Ed25519 signature over timestamp+body.
func (h *Interactions) verifySignature(header http.Header, body []byte) bool {
	sig, err := hex.DecodeString(header.Get("X-Signature-Ed25519"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	timestamp := header.Get("X-Signature-Timestamp")
	if timestamp == "" {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(h.publicKey, msg, sig)
}

func (h *Interactions) handleComponent(w http.ResponseWriter, in interaction) {
	var outcome solve.Outcome
	switch custom(in) {
	case discord.CustomIDApprove:
		outcome = solve.OutcomeApprove
	case discord.CustomIDDecline:
		outcome = solve.OutcomeDecline
	default:
		writeJSON(w, http.StatusOK, interactionResponse{Type: responseDeferredUpdate})
		return
	}

	if in.Member == nil || in.Message == nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	if !h.isOfficer(in.Member.Roles) {
		writeJSON(w, http.StatusOK, interactionResponse{
			Type: responseChannelMessage,
			Data: &interactionResponseData{
				Content: "Only officers can decide solves.",
				Flags:   flagEphemeral,
			},
		})
		return
	}

	messageRef, err := strconv.ParseInt(in.Message.ID, 10, 64)
	if err != nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}
	deciderID, err := strconv.ParseInt(in.Member.User.ID, 10, 64)
	if err != nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	// Acknowledge before any transactional work; Discord's 3 second webhook
	// deadline is far tighter than a decision under load.
	writeJSON(w, http.StatusOK, interactionResponse{Type: responseDeferredUpdate})

	trig := workflow.DecisionTrigger{
		DecisionMessageRef: messageRef,
		Outcome:            outcome,
		DeciderID:          deciderID,
	}
	go h.decide(trig)
}

func (h *Interactions) decide(trig workflow.DecisionTrigger) {
	defer func() {
		if h.decided != nil {
			h.decided <- struct{}{}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), decideTimeout)
	defer cancel()

	res, err := h.decider.Decide(ctx, trig)
	if err != nil {
		h.logger.Error("decision failed",
			"message_ref", trig.DecisionMessageRef,
			"outcome", trig.Outcome.TerminalStatus().String(),
			"error", err)
		return
	}
	if res.AlreadyDecided {
		return
	}
	h.logger.Info("decision applied",
		"solve_id", res.SolveID,
		"status", res.Status.String(),
		"side_effect_errors", len(res.SideEffectErrors))
}

func (h *Interactions) isOfficer(roles []string) bool {
	for _, role := range roles {
		if role == h.officerRoleID {
			return true
		}
	}
	return false
}

func custom(in interaction) string {
	if in.Data == nil {
		return ""
	}
	return in.Data.CustomID
}
