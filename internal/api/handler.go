package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/captcha"
	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/payment"
	"ms-reservation/internal/queue"
	"ms-reservation/internal/seatlock"
	"ms-reservation/internal/seats"
	"ms-reservation/internal/sse"
	"ms-reservation/internal/tickets"
	"ms-reservation/internal/utils"
)

const sessionCookie = "reservation_session"

type Handler struct {
	Queue    *queue.Queue
	Captcha  *captcha.Service
	Locks    *seatlock.Manager
	Seats    *seats.Service
	Payments *payment.Orchestrator
	Emitter  *sse.AdmissionEmitter
	Tickets  *tickets.QRGenerator
	Logger   *logger.Logger
}

// Routes mounts every client-facing operation. Paths mirror the boundary
// operations: enqueue, queue-status, seat-occupy, payment-process,
// payment-cancel, plus the captcha and notification collaborators.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/captcha", h.GetCaptcha)
		r.Post("/token", h.EnterQueue)
		r.Get("/status", h.QueueStatus)
		r.Get("/stream", h.StreamAdmissions)
	})
	r.Route("/api/seats", func(r chi.Router) {
		r.Get("/", h.ListSeats)
		r.Post("/{seatID}/occupy", h.OccupySeat)
		r.Get("/{seatID}/ticket", h.SeatTicket)
	})
	r.Post("/payment/process", h.ProcessPayment)
	r.Post("/api/payments/cancel", h.CancelPayment)
}

// GetCaptcha issues a code bound to the caller's session, creating the
// session cookie on first contact.
func (h *Handler) GetCaptcha(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)

	code, err := h.Captcha.Generate(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("", map[string]string{"captcha": code}))
}

// EnterQueue validates the captcha and enqueues the user, returning the
// 0-based rank. Re-entry by a queued user keeps the existing position.
func (h *Handler) EnterQueue(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	userID := h.userID(r)
	captchaInput := r.URL.Query().Get("captchaInput")
	if eventID == "" || userID == "" {
		h.writeError(w, fault.Validation("eventId and userId are required"))
		return
	}

	ok, err := h.Captcha.Validate(r.Context(), h.sessionID(w, r), captchaInput)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		h.Logger.Warn("API", fmt.Sprintf("captcha rejected for user %s", userID))
		h.writeError(w, fault.Validation("captcha verification failed"))
		return
	}

	rank, err := h.Queue.Enqueue(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("joined waiting queue", map[string]int64{"rank": rank}))
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	userID := h.userID(r)
	if eventID == "" || userID == "" {
		h.writeError(w, fault.Validation("eventId and userId are required"))
		return
	}

	status, err := h.Queue.Status(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("", status))
}

func (h *Handler) ListSeats(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		h.writeError(w, fault.Validation("eventId is required"))
		return
	}

	views, err := h.Seats.AvailableSeats(r.Context(), eventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("", views))
}

// OccupySeat is the fail-fast reservation attempt: the caller needs a
// live admission window, and exactly one concurrent caller wins the seat.
func (h *Handler) OccupySeat(w http.ResponseWriter, r *http.Request) {
	seatID := chi.URLParam(r, "seatID")
	eventID := r.URL.Query().Get("eventId")
	userID := h.userID(r)
	if seatID == "" || eventID == "" || userID == "" {
		h.writeError(w, fault.Validation("seatID, eventId and userId are required"))
		return
	}

	allowed, err := h.Queue.IsAllowed(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !allowed {
		h.writeError(w, fault.Validation("no active admission window"))
		return
	}

	if err := h.Locks.Acquire(r.Context(), seatID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.Seats.ValidateForOccupy(r.Context(), seatID, eventID); err != nil {
		// The lock was taken before validation; hand it back.
		if relErr := h.Locks.Release(r.Context(), seatID, userID); relErr != nil {
			h.Logger.Warn("API", fmt.Sprintf("lock rollback failed for seat %s: %v", seatID, relErr))
		}
		h.writeError(w, err)
		return
	}

	h.Seats.Cache.SetLocked(r.Context(), eventID, seatID, true)
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("seat reserved", map[string]bool{"success": true}))
}

// ProcessPayment validates reservation ownership and emits the payment
// event. A missing Idempotency-Key header degrades to a synthesized key.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	seatID := r.URL.Query().Get("seatId")
	userID := h.userID(r)
	if seatID == "" || userID == "" {
		h.writeError(w, fault.Validation("seatId and userId are required"))
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = payment.SynthesizeKey(seatID, userID)
		h.Logger.Debug("API", fmt.Sprintf("no idempotency key supplied, synthesized %s", key))
	}

	if err := h.Payments.ValidateAndPay(r.Context(), seatID, userID, key); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("payment request accepted", map[string]string{"status": "success"}))
}

// CancelPayment is the administrative cancel path: it force-releases the
// seat's lock regardless of holder. Use is audit-logged by the manager.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	seatID := r.URL.Query().Get("seatId")
	if seatID == "" {
		h.writeError(w, fault.Validation("seatId is required"))
		return
	}

	if err := h.Locks.ForceRelease(r.Context(), seatID); err != nil {
		h.writeError(w, err)
		return
	}

	// Best-effort overlay refresh; the seat row tells us which event.
	if seat, err := h.Seats.Store.GetSeat(r.Context(), seatID); err == nil {
		h.Seats.Cache.SetLocked(r.Context(), seat.EventID, seatID, false)
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("reservation released", nil))
}

// SeatTicket serves the encrypted QR for a sold seat to its buyer.
func (h *Handler) SeatTicket(w http.ResponseWriter, r *http.Request) {
	seatID := chi.URLParam(r, "seatID")
	userID := h.userID(r)
	if seatID == "" || userID == "" {
		h.writeError(w, fault.Validation("seatID and userId are required"))
		return
	}

	seat, err := h.Seats.Store.GetSeat(r.Context(), seatID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if seat.Status != models.SeatSold {
		h.writeError(w, fault.Validation("seat has not been sold"))
		return
	}
	if seat.SoldTo != userID {
		h.writeError(w, fault.Validation("seat belongs to another buyer"))
		return
	}

	png, err := h.Tickets.Generate(models.Ticket{
		SeatID:     seat.ID,
		EventID:    seat.EventID,
		UserID:     userID,
		SeatNumber: seat.SeatNumber,
		IssuedAt:   time.Now().Unix(),
	})
	if err != nil {
		h.writeError(w, fault.Transient("ticket generation failed", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *Handler) userID(r *http.Request) string {
	if uid := auth.UserID(r.Context()); uid != "" {
		return uid
	}
	return r.URL.Query().Get("userId")
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sessionID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
	})
	return sessionID
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("response encoding failed: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch fault.KindOf(err) {
	case fault.KindConflict:
		status = http.StatusConflict
	case fault.KindValidation:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		h.Logger.Error("API", fmt.Sprintf("internal failure: %v", err))
	}
	h.writeJSON(w, status, utils.ErrorResponse(err.Error()))
}
