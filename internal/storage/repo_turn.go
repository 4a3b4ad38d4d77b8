package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sigloome/research-agent/internal/stream"
)

// TurnRecord captures the bookkeeping of one chat turn.
type TurnRecord struct {
	ID             uuid.UUID
	Timestamp      time.Time
	ChatID         string
	StatusCode     int
	Success        bool
	ErrorMessage   string
	ResponseTimeMs int
	IsStream       bool
}

func InsertTurnJob(r *TurnRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO turns (id, ts, chat_id, status_code, success, error_message, response_time_ms, is_stream)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			r.ID, r.Timestamp, r.ChatID, r.StatusCode, r.Success,
			nilIfEmpty(r.ErrorMessage), r.ResponseTimeMs, r.IsStream,
		)
		return err
	})
}

// InsertTurnFramesJob archives a turn's decoded frames in bulk using the
// COPY protocol.
func InsertTurnFramesJob(turnID uuid.UUID, ts time.Time, frames []stream.Frame) WriteJob {
	return WriteJobFunc(func(ctx context.Context, pool *pgxpool.Pool) error {
		rows := make([][]interface{}, len(frames))
		for i, f := range frames {
			rows[i] = []interface{}{
				ts,
				turnID,
				i,
				frameKindName(f.Kind),
				f.Payload,
			}
		}

		_, err := pool.CopyFrom(ctx,
			pgx.Identifier{"turn_frames"},
			[]string{"ts", "turn_id", "frame_index", "frame_kind", "payload"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

func frameKindName(k stream.FrameKind) string {
	switch k {
	case stream.FrameText:
		return "text"
	case stream.FrameData:
		return "data"
	default:
		return "unknown"
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
