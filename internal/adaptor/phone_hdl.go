package adaptor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

type PhoneHandler struct {
	service usecase.OTPService
	log     *zap.Logger
}

func NewPhoneHandler(service usecase.OTPService, log *zap.Logger) *PhoneHandler {
	return &PhoneHandler{
		service: service,
		log:     log,
	}
}

// Initiate handles POST /api/auth/phone/initiate
func (h *PhoneHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req request.PhoneOTPInitiateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	resp, err := h.service.InitiateOTP(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "send OTP")
		return
	}

	utils.ResponseSuccess(w, fmt.Sprintf("OTP sent to %s via %s.", resp.PhoneNumber, resp.Medium), resp)
}

// Verify handles POST /api/auth/phone/verify
func (h *PhoneHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.PhoneOTPVerifyRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), &req, sessionMeta(r))
	if err != nil {
		handleServiceError(w, h.log, err, "verify OTP")
		return
	}

	utils.ResponseSuccess(w, "Login successful.", resp)
}
