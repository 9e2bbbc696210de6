package adaptor

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/dto/response"
	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type TelegramHandler struct {
	service       usecase.TelegramService
	webhookSecret string
	log           *zap.Logger
}

func NewTelegramHandler(service usecase.TelegramService, webhookSecret string, log *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		service:       service,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Initiate handles POST /api/auth/initiate
func (h *TelegramHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Initiate(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "initiate Telegram flow")
		return
	}

	utils.ResponseCreated(w, "Telegram flow initiated", resp)
}

// Webhook handles POST /api/auth/webhook. Telegram retries on anything but
// 2xx, so every payload is acknowledged once the secret matches.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			h.log.Warn("Webhook rejected - bad secret token", zap.String("ip", r.RemoteAddr))
			utils.ResponseUnauthorized(w, "Invalid webhook secret")
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Warn("Webhook payload not decodable", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		h.log.Debug("Webhook update without message ignored", zap.Int("update_id", update.UpdateID))
		w.WriteHeader(http.StatusOK)
		return
	}

	inbound := request.InboundMessage{
		ChatID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:   msg.Text,
	}
	if msg.From != nil {
		inbound.Username = nonEmpty(msg.From.UserName)
		inbound.FirstName = nonEmpty(msg.From.FirstName)
		inbound.LastName = nonEmpty(msg.From.LastName)
	}

	h.service.HandleInboundMessage(r.Context(), inbound)
	w.WriteHeader(http.StatusOK)
}

// Status handles GET /api/auth/check?code=
func (h *TelegramHandler) Status(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.ResponseBadRequest(w, "Missing 'code' parameter.", nil)
		return
	}
	if _, err := uuid.Parse(code); err != nil {
		resp := response.StatusResponse{Status: response.StatusInvalidCode, Message: "Invalid code format."}
		utils.ResponseStatus(w, http.StatusBadRequest, resp.Message, resp)
		return
	}

	resp, err := h.service.Status(r.Context(), code, sessionMeta(r))
	if err != nil {
		handleServiceError(w, h.log, err, "check Telegram status")
		return
	}

	utils.ResponseStatus(w, statusHTTPCode(resp.Status), resp.Message, resp)
}

func statusHTTPCode(status string) int {
	switch status {
	case response.StatusInvalidCode:
		return http.StatusNotFound
	case response.StatusExpired:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// Finalize handles POST /api/auth/final
func (h *TelegramHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req request.FinalizeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	resp, err := h.service.Finalize(r.Context(), &req, sessionMeta(r))
	if err != nil {
		// Duplicate phone is reported as a bad request, like other input errors.
		if authErr := usecase.AsAuthError(err); authErr.Kind == usecase.KindConflict {
			h.log.Warn("finalize registration failed - conflict", zap.Error(err))
			utils.ResponseBadRequest(w, authErr.Message, nil)
			return
		}
		handleServiceError(w, h.log, err, "finalize registration")
		return
	}

	utils.ResponseCreated(w, "Registration successful!", resp)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
