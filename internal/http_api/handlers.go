package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anthroposcity/actgate/internal/models"
)

// identity is a handler for the /identity endpoint.
// It returns the caller's UserIdentity for the experienceId query parameter.
func (s *HTTPServer) identity(c *gin.Context) {
	identity, err := s.gatekeeper.Resolve(c.Request.Context(), c.Request, c.Query("experienceId"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("Failed to resolve identity", "error", err, "request_id", c.GetString(requestIDHeader))
		}
		c.JSON(status, gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, identity)
}

// verify is a handler for the /verify endpoint.
// A malformed body is not rejected here: the gatekeeper checks identity and entitlement first.
func (s *HTTPServer) verify(c *gin.Context) {
	var req *models.VerificationRequest
	var body models.VerificationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
	} else {
		req = &body
	}

	outcome, err := s.gatekeeper.HandleVerification(c.Request.Context(), c.Request, req)
	status := statusFor(err)
	if outcome == nil {
		outcome = &models.VerificationOutcome{Reason: models.ReasonFor(err), Message: errorMessage(err)}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Verification request failed", "error", err, "request_id", c.GetString(requestIDHeader))
	}

	c.JSON(status, outcome)
}

// actPrice is a handler for the /act-price endpoint.
func (s *HTTPServer) actPrice(c *gin.Context) {
	stats, err := s.gatekeeper.TokenStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ACT price"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// statusFor maps the error taxonomy to HTTP statuses. Engine failures are processed
// attempts and answer 200 with success=false.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyVerified), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSignatureInvalid),
		errors.Is(err, models.ErrZeroBalance),
		errors.Is(err, models.ErrPriceUnavailable),
		errors.Is(err, models.ErrInsufficientValue):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func errorMessage(err error) string {
	switch models.ReasonFor(err) {
	case models.ReasonUnauthorized:
		return "Unauthorized"
	case models.ReasonForbidden:
		return "This app requires a purchase"
	case models.ReasonAlreadyVerified:
		return "Wallet already verified"
	case models.ReasonValidation:
		return "address and signature are required"
	case models.ReasonUpstreamUnavailable:
		return "Upstream service unavailable, please retry"
	}
	return "Internal server error"
}
