package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/solve"
)

type fakeDecider struct {
	mu       sync.Mutex
	triggers []workflow.DecisionTrigger
	block    chan struct{}
	result   *workflow.DecisionResult
}

func (d *fakeDecider) Decide(ctx context.Context, trig workflow.DecisionTrigger) (*workflow.DecisionResult, error) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.triggers = append(d.triggers, trig)
	d.mu.Unlock()
	if d.result != nil {
		return d.result, nil
	}
	return &workflow.DecisionResult{SolveID: 1, Status: trig.Outcome.TerminalStatus()}, nil
}

func (d *fakeDecider) recorded() []workflow.DecisionTrigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]workflow.DecisionTrigger(nil), d.triggers...)
}

type interactionsHarness struct {
	handler *Interactions
	decider *fakeDecider
	priv    ed25519.PrivateKey
	decided chan struct{}
}

func newInteractionsHarness(t *testing.T) *interactionsHarness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	decider := &fakeDecider{}
	cfg := config.DiscordConfig{
		PublicKey:     hex.EncodeToString(pub),
		OfficerRoleID: 900,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := NewInteractions(cfg, decider, logger)
	require.NoError(t, err)

	decided := make(chan struct{}, 4)
	handler.decided = decided
	return &interactionsHarness{handler: handler, decider: decider, priv: priv, decided: decided}
}

// signedRequest builds a webhook request with a valid signature.
func (h *interactionsHarness) signedRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	timestamp := "1700000000"
	sig := ed25519.Sign(h.priv, append([]byte(timestamp), raw...))

	req := httptest.NewRequest(http.MethodPost, "/discord/interactions", bytes.NewReader(raw))
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func (h *interactionsHarness) waitDecided(t *testing.T) {
	t.Helper()
	select {
	case <-h.decided:
	case <-time.After(time.Second):
		t.Fatal("decision never ran")
	}
}

func componentClick(customID, messageID, userID string, roles []string) map[string]any {
	return map[string]any{
		"type": interactionMessageComponent,
		"data": map[string]any{"custom_id": customID},
		"member": map[string]any{
			"user":  map[string]any{"id": userID},
			"roles": roles,
		},
		"message": map[string]any{"id": messageID},
	}
}

func TestInteractionsRejectsBadSignature(t *testing.T) {
	h := newInteractionsHarness(t)

	raw, err := json.Marshal(map[string]any{"type": interactionPing})
	require.NoError(t, err)

	t.Run("missing headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/discord/interactions", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		h.handler.Handle(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		timestamp := "1700000000"
		sig := ed25519.Sign(otherPriv, append([]byte(timestamp), raw...))

		req := httptest.NewRequest(http.MethodPost, "/discord/interactions", bytes.NewReader(raw))
		req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
		req.Header.Set("X-Signature-Timestamp", timestamp)
		rec := httptest.NewRecorder()
		h.handler.Handle(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := h.signedRequest(t, map[string]any{"type": interactionPing})
		req.Body = io.NopCloser(bytes.NewReader([]byte(`{"type":3}`)))
		rec := httptest.NewRecorder()
		h.handler.Handle(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestInteractionsPingPong(t *testing.T) {
	h := newInteractionsHarness(t)

	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, map[string]any{"type": interactionPing}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responsePong, resp.Type)
}

func TestInteractionsApproveClick(t *testing.T) {
	h := newInteractionsHarness(t)

	click := componentClick("solve:approve", "555001", "42", []string{"111", "900"})
	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, click))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responseDeferredUpdate, resp.Type)

	h.waitDecided(t)
	trigs := h.decider.recorded()
	require.Len(t, trigs, 1)
	assert.Equal(t, int64(555001), trigs[0].DecisionMessageRef)
	assert.Equal(t, solve.OutcomeApprove, trigs[0].Outcome)
	assert.Equal(t, int64(42), trigs[0].DeciderID)
}

func TestInteractionsDeclineClick(t *testing.T) {
	h := newInteractionsHarness(t)

	click := componentClick("solve:decline", "555002", "42", []string{"900"})
	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, click))

	require.Equal(t, http.StatusOK, rec.Code)
	h.waitDecided(t)
	trigs := h.decider.recorded()
	require.Len(t, trigs, 1)
	assert.Equal(t, solve.OutcomeDecline, trigs[0].Outcome)
}

func TestInteractionsNonOfficerRejected(t *testing.T) {
	h := newInteractionsHarness(t)

	click := componentClick("solve:approve", "555003", "42", []string{"111", "222"})
	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, click))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responseChannelMessage, resp.Type)
	require.NotNil(t, resp.Data)
	assert.Equal(t, flagEphemeral, resp.Data.Flags)

	assert.Empty(t, h.decider.recorded(), "no decision for non-officers")
}

func TestInteractionsAcksBeforeDeciding(t *testing.T) {
	h := newInteractionsHarness(t)
	h.decider.block = make(chan struct{})

	click := componentClick("solve:approve", "555004", "42", []string{"900"})
	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, click))

	// The handler has returned with the ack while the decision is still
	// blocked in flight.
	require.Equal(t, http.StatusOK, rec.Code)
	var resp interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responseDeferredUpdate, resp.Type)
	assert.Empty(t, h.decider.recorded())

	close(h.decider.block)
	h.waitDecided(t)
	assert.Len(t, h.decider.recorded(), 1)
}

func TestInteractionsUnknownComponentIgnored(t *testing.T) {
	h := newInteractionsHarness(t)

	click := componentClick("something:else", "555005", "42", []string{"900"})
	rec := httptest.NewRecorder()
	h.handler.Handle(rec, h.signedRequest(t, click))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp interactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, responseDeferredUpdate, resp.Type)
	assert.Empty(t, h.decider.recorded())
}
