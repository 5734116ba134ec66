package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/session"

	"github.com/labstack/echo/v4"
)

// heartbeatInterval is how often an idle stream sends a keep-alive comment.
// Each heartbeat also touches the session so the idle reaper leaves it alone.
const heartbeatInterval = 15 * time.Second

// Stream handles GET /api/v1/stream. It is a server-sent-events endpoint:
// the client passes observer_id and a comma-separated scopes parameter
// ("order", "driver:1d9c...", ...), receives one snapshot event per scope and
// then live events tagged with their global sequence as the SSE id. On
// reconnect the standard Last-Event-ID header resumes the stream; when the
// cursor has aged past the retention window fresh snapshots are sent instead.
func (s *Server) Stream(ctx echo.Context) error {
	observerID := ctx.QueryParam("observer_id")
	if observerID == "" {
		return badRequest(ctx, "observer_id is required")
	}

	scopes, err := parseScopes(ctx.QueryParam("scopes"))
	if err != nil {
		return badRequest(ctx, "Invalid scopes: "+err.Error())
	}

	reqCtx := ctx.Request().Context()

	var (
		sess      *session.Session
		snapshots []session.Snapshot
	)
	if lastEventID := ctx.Request().Header.Get("Last-Event-ID"); lastEventID != "" {
		lastSeq, parseErr := strconv.ParseInt(lastEventID, 10, 64)
		if parseErr != nil {
			return badRequest(ctx, "Invalid Last-Event-ID")
		}
		sess, snapshots, err = s.sessions.Resync(reqCtx, observerID, lastSeq)
		if errors.Is(err, session.ErrSessionNotFound) {
			sess, snapshots, err = s.sessions.Connect(reqCtx, observerID, scopes)
		}
	} else {
		sess, snapshots, err = s.sessions.Connect(reqCtx, observerID, scopes)
	}
	if err != nil {
		return writeError(ctx, err)
	}
	defer s.sessions.Disconnect(observerID)

	response := ctx.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set("Cache-Control", "no-cache")
	response.Header().Set("Connection", "keep-alive")
	response.WriteHeader(http.StatusOK)

	for _, snapshot := range snapshots {
		if err = writeSSE(response, "snapshot", 0, snapshot); err != nil {
			return nil
		}
	}
	response.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	deliveries := sess.Deliveries()
	for {
		select {
		case <-reqCtx.Done():
			return nil

		case <-heartbeat.C:
			if _, err = fmt.Fprint(response, ": keep-alive\n\n"); err != nil {
				return nil
			}
			response.Flush()
			_ = s.sessions.Touch(observerID)

		case delivery, ok := <-deliveries:
			if !ok {
				// The stream was cut server-side. Tell the client whether a
				// plain reconnect suffices or its cursor is past retention.
				if sess.Truncated() {
					_ = writeSSE(response, "truncated", 0, nil)
				}
				response.Flush()
				return nil
			}
			if err = writeSSE(response, delivery.Event.EventType, delivery.Event.Sequence, delivery); err != nil {
				return nil
			}
			response.Flush()
		}
	}
}

// writeSSE emits one server-sent event. A zero id is omitted so snapshot and
// control events do not disturb the client's Last-Event-ID cursor.
func writeSSE(w *echo.Response, eventName string, id int64, data any) error {
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", eventName); err != nil {
		return err
	}

	payload := []byte("{}")
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = encoded
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// parseScopes parses the scopes query parameter: comma-separated entries of
// either "kind" (all entities of the kind) or "kind:id" (one entity).
func parseScopes(raw string) ([]event.Scope, error) {
	if raw == "" {
		return nil, errors.New("at least one scope is required")
	}

	parts := strings.Split(raw, ",")
	scopes := make([]event.Scope, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kindName, idName, hasID := strings.Cut(part, ":")
		kind := event.Kind(kindName)
		if err := kind.Validate(); err != nil {
			return nil, fmt.Errorf("unknown scope kind %q", kindName)
		}

		if !hasID {
			scopes = append(scopes, event.ScopeKind(kind))
			continue
		}
		id, err := kernel.UUIDFromString(idName)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id in scope %q", part)
		}
		scopes = append(scopes, event.ScopeEntity(kind, id))
	}
	if len(scopes) == 0 {
		return nil, errors.New("at least one scope is required")
	}

	return scopes, nil
}
