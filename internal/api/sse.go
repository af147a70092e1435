package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charliek/logdog/internal/domain"
)

// StreamValues handles GET /api/v1/values/stream (SSE). It accepts the
// same matcher and presentation filters as GET /values.
func (h *Handlers) StreamValues(w http.ResponseWriter, r *http.Request) {
	filter, err := parseValueFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: domain.ErrCodeInvalidParameter})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "streaming not supported",
			Code:  domain.ErrCodeStreamingNotSupported,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.values.Subscribe(filter)
	defer h.values.Unsubscribe(sub.ID())

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// A slow client loses values at the subscription buffer rather than
	// stalling the reader goroutine; a failed write ends the stream.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.Channel():
			if !ok {
				return
			}

			data, err := json.Marshal(ToValueResponse(v))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				h.logger.Debug("SSE write failed, client likely disconnected", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
