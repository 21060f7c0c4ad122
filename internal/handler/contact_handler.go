package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	metricsPkg "contact-intake-go/internal/metrics"
	"contact-intake-go/internal/model"
)

const (
	invalidRequestMessage = "Les données du formulaire sont invalides."
	internalErrorMessage  = "Une erreur est survenue lors de l'envoi du message. Veuillez réessayer plus tard."
)

var fieldLabels = map[string]string{
	"Name":    "Le nom",
	"Email":   "L'adresse email",
	"Subject": "Le sujet",
	"Message": "Le message",
}

var fieldNames = map[string]string{
	"Name":    "name",
	"Email":   "email",
	"Subject": "subject",
	"Message": "message",
}

// SubmitContact handles the public contact form
func (h *Handlers) SubmitContact(c *gin.Context) {
	key := h.keyFunc(c.Request)

	if h.limiter != nil {
		decision := h.limiter.CheckContact(c.Request.Context(), key)
		for k, v := range decision.Headers {
			c.Header(k, v)
		}
		if !decision.Allowed {
			h.recordOutcome(metricsPkg.OutcomeRateLimited)
			logrus.Warnf("Contact submission from %s refused by the %s window", key, decision.Window)
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate_limited",
				Message: decision.Message,
				Code:    http.StatusTooManyRequests,
			})
			return
		}
	}

	var req ContactRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		h.recordOutcome(metricsPkg.OutcomeInvalid)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: invalidRequestMessage,
			Code:    http.StatusBadRequest,
		})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if err := binding.Validator.ValidateStruct(&req); err != nil {
		h.recordOutcome(metricsPkg.OutcomeInvalid)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: invalidRequestMessage,
			Code:    http.StatusBadRequest,
			Details: fieldErrors(err),
		})
		return
	}

	meta := model.RequestMetadata{
		IP:        key,
		UserAgent: c.Request.UserAgent(),
	}
	if h.countryHeader != "" {
		meta.Country = strings.TrimSpace(c.GetHeader(h.countryHeader))
	}

	result, err := h.pipeline.Submit(c.Request.Context(), model.ContactSubmission{
		Name:     req.Name,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		Honeypot: req.Company,
	}, meta)
	if err != nil {
		logrus.Errorf("Failed to accept contact submission: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: internalErrorMessage,
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handlers) recordOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.Submission(outcome)
	}
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fieldNames[fe.Field()],
			Message: fieldMessage(fe),
		})
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s est obligatoire.", label)
	case "email":
		return fmt.Sprintf("%s n'est pas valide.", label)
	case "min":
		return fmt.Sprintf("%s doit contenir au moins %s caractères.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s ne doit pas dépasser %s caractères.", label, fe.Param())
	default:
		return fmt.Sprintf("%s est invalide.", label)
	}
}
