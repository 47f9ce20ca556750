package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Event struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	EventTime time.Time       `json:"event_time"`
	Payload   json.RawMessage `json:"payload"`
}

func (q *Queries) LogEvent(ctx context.Context, principalID int64, eventType string, payload interface{}) error {
	eventMsg := map[string]interface{}{
		"event_type": eventType,
		"payload":    payload,
	}
	eventBytes, err := json.Marshal(eventMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `INSERT INTO event_journal (principal_id, event_type, payload) VALUES ($1, $2, $3)`
	_, err = q.db.Exec(ctx, query, principalID, eventType, eventBytes)
	if err != nil {
		return err
	}

	return nil
}

func (q *Queries) GetEventsSince(ctx context.Context, principalID int64, sinceID int64) ([]Event, error) {
	query := `
		SELECT id, event_type, event_time, payload
		FROM event_journal
		WHERE principal_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT 100
	`
	rows, err := q.db.Query(ctx, query, principalID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.EventTime,
			&event.Payload,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if events == nil {
		return []Event{}, nil
	}

	return events, nil
}
