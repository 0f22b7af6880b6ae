package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/utils"
)

// Sweep triggers an immediate expired-session sweep.
func Sweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := utils.ClientIP(r, d.TrustProxy)

		select {
		case d.SweepTrigger <- struct{}{}:
			d.Logger.Info("manual session sweep triggered via endpoint",
				logger.String("remote_ip", ip))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Session sweep triggered\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("session sweep already pending",
				logger.String("remote_ip", ip))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Session sweep already pending, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}
