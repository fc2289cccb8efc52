package push

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler returns the webhook endpoint decoding push notifications into
// the dispatcher. The payload is one JSON Change per request; malformed
// payloads get a 400 and are dropped (the next push or a manual refresh
// recovers).
func Handler(d *Dispatcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/push", func(w http.ResponseWriter, r *http.Request) {
		var change Change
		if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
			slog.WarnContext(r.Context(), "push: malformed payload", "error", err)
			http.Error(w, "malformed push payload", http.StatusBadRequest)
			return
		}

		d.Dispatch(r.Context(), change)
		w.WriteHeader(http.StatusAccepted)
	})

	return otelhttp.NewHandler(mux, "push-webhook")
}
