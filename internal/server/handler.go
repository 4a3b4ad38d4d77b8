// Package server exposes the chat turn endpoint: it forwards the user's
// query to the agent backend, drives the response assembler over the
// framed reply stream, and relays clean text deltas to the client while
// archiving and persisting the turn.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/sigloome/research-agent/internal/assembler"
	"github.com/sigloome/research-agent/internal/config"
	"github.com/sigloome/research-agent/internal/filter"
	"github.com/sigloome/research-agent/internal/jetstream"
	"github.com/sigloome/research-agent/internal/storage"
)

const agentStreamPath = "/api/agent/stream"

// JobQueue is the persistence collaborator: finalized turn artifacts are
// enqueued as write jobs. Satisfied by storage.BatchWriter.
type JobQueue interface {
	Enqueue(job storage.WriteJob)
}

// Relay receives the raw transport chunks of each turn for background
// archiving. Satisfied by nats.JetStreamContext.
type Relay interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type Handler struct {
	cfg    *config.Config
	client *http.Client
	writer JobQueue
	pool   *pgxpool.Pool
	js     Relay
	mux    *http.ServeMux
}

func NewHandler(cfg *config.Config, writer JobQueue, pool *pgxpool.Pool, js Relay) *Handler {
	h := &Handler{
		cfg:    cfg,
		client: newUpstreamClient(),
		writer: writer,
		pool:   pool,
		js:     js,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /api/chat", h.handleChat)
	h.mux.HandleFunc("GET /api/chats/{chatID}/messages", h.handleHistory)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type historyMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")

	messages, err := storage.ChatHistory(r.Context(), h.pool, chatID)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("failed to load chat history")
		http.Error(w, "failed to load chat history", http.StatusInternalServerError)
		return
	}

	out := make([]historyMessage, len(messages))
	for i, m := range messages {
		out[i] = historyMessage{
			ID:        m.ID.String(),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type chatRequest struct {
	ChatID string `json:"chat_id"`
	Query  string `json:"query"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.ChatID == "" {
		req.ChatID = "default"
	}

	turnID := uuid.New()
	start := time.Now()

	h.writer.Enqueue(storage.EnsureChatJob(req.ChatID, "New Chat"))
	h.writer.Enqueue(storage.InsertMessageJob(storage.Message{
		ID:        uuid.New(),
		ChatID:    req.ChatID,
		Role:      "user",
		Content:   req.Query,
		CreatedAt: start,
	}))

	resp, err := h.openTurn(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("chat_id", req.ChatID).Msg("agent upstream request failed")
		http.Error(w, "agent backend unavailable", http.StatusBadGateway)
		h.recordTurn(turnID, start, req.ChatID, http.StatusBadGateway, false, err.Error())
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	asm := assembler.New(assembler.Options{
		Filter: filter.Options{
			HiddenTags:  h.cfg.HiddenTags,
			DisplayTags: h.cfg.DisplayTags,
		},
		Logger: log.With().Str("turn_id", turnID.String()).Logger(),
	})

	streamErr := h.relayTurn(w, resp.Body, asm, turnID)

	sent := len(asm.Text())
	final := asm.Finalize()
	if tail := final[sent:]; tail != "" {
		w.Write([]byte(tail))
	}

	canceled := r.Context().Err() != nil
	if canceled {
		// User went away; drop the partial turn instead of persisting it.
		log.Debug().Str("turn_id", turnID.String()).Msg("turn canceled by client")
		h.recordTurn(turnID, start, req.ChatID, http.StatusOK, false, "canceled")
		return
	}

	// A transport error still persists whatever accumulated, so a resumed
	// chat shows partial history rather than nothing.
	if final != "" {
		h.writer.Enqueue(storage.InsertMessageJob(storage.Message{
			ID:        uuid.New(),
			ChatID:    req.ChatID,
			Role:      "assistant",
			Content:   final,
			CreatedAt: time.Now(),
		}))
	}

	errMsg := ""
	if streamErr != nil {
		errMsg = streamErr.Error()
	}
	h.recordTurn(turnID, start, req.ChatID, resp.StatusCode, streamErr == nil, errMsg)

	log.Info().
		Str("turn_id", turnID.String()).
		Str("chat_id", req.ChatID).
		Int("chars", len(final)).
		Int("plan_tasks", len(asm.Plan())).
		Bool("saw_meta", asm.Done()).
		Dur("duration", time.Since(start)).
		Msg("turn complete")
}

// openTurn sends the query to the agent backend and returns its framed
// response stream.
func (h *Handler) openTurn(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	target := buildTargetURL(h.cfg.AgentBaseURL, agentStreamPath)
	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	prepareUpstreamHeaders(upstreamReq.Header, h.cfg.AgentAPIKey)

	return h.client.Do(upstreamReq)
}

// relayTurn pumps the upstream body through the assembler, streaming each
// clean delta to the client and mirroring raw chunks onto the relay for
// the frame archiver. Returns the transport error, if any.
func (h *Handler) relayTurn(w http.ResponseWriter, body io.Reader, asm *assembler.Assembler, turnID uuid.UUID) error {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	subject := jetstream.ChunkSubject(turnID.String())

	var streamErr error
	for {
		n, err := body.Read(buf)
		if n > 0 {
			h.js.Publish(subject, buf[:n])
			update := asm.Push(buf[:n])
			if update.DeltaText != "" {
				w.Write([]byte(update.DeltaText))
				if canFlush {
					flusher.Flush()
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				streamErr = err
			}
			break
		}
	}

	done, _ := json.Marshal(map[string]int64{"ts": time.Now().UnixNano()})
	h.js.Publish(jetstream.DoneSubject(turnID.String()), done)
	return streamErr
}

func (h *Handler) recordTurn(turnID uuid.UUID, start time.Time, chatID string, status int, success bool, errMsg string) {
	h.writer.Enqueue(storage.InsertTurnJob(&storage.TurnRecord{
		ID:             turnID,
		Timestamp:      start,
		ChatID:         chatID,
		StatusCode:     status,
		Success:        success,
		ErrorMessage:   errMsg,
		ResponseTimeMs: int(time.Since(start).Milliseconds()),
		IsStream:       true,
	}))
}
