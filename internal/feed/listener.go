package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Tables published by the database triggers
var Tables = map[string]bool{
	"groups":            true,
	"group_members":     true,
	"messages":          true,
	"resources":         true,
	"sessions":          true,
	"session_attendees": true,
	"profiles":          true,
	"notifications":     true,
}

// Listener turns pg_notify payloads into hub events
type Listener struct {
	dsn     string
	channel string
	db      *sql.DB
	out     Publisher
	logger  *zap.Logger
}

// NewListener creates a listener on channel. db is used to reload rows whose
// notification payload was truncated.
func NewListener(dsn, channel string, db *sql.DB, out Publisher, logger *zap.Logger) *Listener {
	return &Listener{dsn: dsn, channel: channel, db: db, out: out, logger: logger}
}

// Run blocks until ctx is done
func (l *Listener) Run(ctx context.Context) error {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("feed listener connection problem", zap.Int("event", int(ev)), zap.Error(err))
		}
	}

	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, report)
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("feed listener started", zap.String("channel", l.channel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-listener.Notify:
			if !ok {
				return errors.New("feed listener closed")
			}
			if n == nil {
				// pq sends nil after re-establishing the connection.
				l.logger.Warn("feed listener reconnected, notifying subscribers of a gap")
				l.out.Publish(Event{Type: EventGap, CommitTimestamp: time.Now().UTC()})
				continue
			}
			l.handle(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Error("feed payload decode failed", zap.Error(err))
		return
	}
	if !Tables[ev.Table] {
		l.logger.Warn("feed event for unknown table", zap.String("table", ev.Table))
		return
	}

	if ev.Partial && ev.Type != EventDelete {
		row, err := l.reload(ctx, ev)
		if err != nil {
			l.logger.Warn("feed row reload failed", zap.String("table", ev.Table), zap.Error(err))
			return
		}
		if row == nil {
			// Deleted in the meantime; its DELETE event follows.
			return
		}
		ev.New = row
		ev.Partial = false
	}

	l.out.Publish(ev)
}

func (l *Listener) reload(ctx context.Context, ev Event) (json.RawMessage, error) {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.New, &ref); err != nil {
		return nil, fmt.Errorf("failed to decode partial row: %w", err)
	}
	if ref.ID == "" {
		return nil, errors.New("partial row without id")
	}

	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s t WHERE t.id = $1`, pq.QuoteIdentifier(ev.Table))
	var row []byte
	err := l.db.QueryRowContext(ctx, query, ref.ID).Scan(&row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload row: %w", err)
	}
	return row, nil
}
