package recordings

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skillbatch/backend/pkg/response"
)

const (
	eventURLValidation      = "endpoint.url_validation"
	eventRecordingCompleted = "recording.completed"
)

// flexID accepts a JSON number or string; Zoom sends meeting ids both ways.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

// webhookEvent is the provider webhook envelope.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PlainToken string `json:"plainToken"`
		Object     struct {
			ID        flexID `json:"id"`
			MeetingID flexID `json:"meeting_id"`
			UUID      string `json:"uuid"`
		} `json:"object"`
	} `json:"payload"`
}

// WebhookConfig holds the webhook shared secrets.
type WebhookConfig struct {
	// SecretToken is matched against the Authorization header of every
	// event delivery.
	SecretToken string
	// VerificationToken signs the endpoint.url_validation challenge.
	VerificationToken string
	// AllowUnverified accepts events without an Authorization check when no
	// secret token is configured. Development only.
	AllowUnverified bool
}

// WebhookHandler handles POST /webhook deliveries from the meeting provider.
type WebhookHandler struct {
	ingestor *Ingestor
	cfg      WebhookConfig
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(ingestor *Ingestor, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{ingestor: ingestor, cfg: cfg, logger: logger}
}

// authorized checks the shared-secret bearer credential in constant time.
func (h *WebhookHandler) authorized(c *gin.Context) bool {
	if h.cfg.SecretToken == "" {
		if h.cfg.AllowUnverified {
			h.logger.Warn("webhook accepted without secret verification (ZOOM_WEBHOOK_ALLOW_UNVERIFIED)")
			return true
		}
		return false
	}
	expected := "Bearer " + h.cfg.SecretToken
	return hmac.Equal([]byte(c.GetHeader("Authorization")), []byte(expected))
}

// challengeResponse answers the provider's endpoint-ownership validation:
// HMAC-SHA256 of the plain token, keyed with the verification secret.
func (h *WebhookHandler) challengeResponse(plainToken string) string {
	mac := hmac.New(sha256.New, []byte(h.cfg.VerificationToken))
	mac.Write([]byte(plainToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// Handle handles POST /webhook.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var event webhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if event.Event == eventURLValidation {
		plainToken := event.Payload.PlainToken
		// Zoom requires this exact response shape, no envelope.
		c.JSON(http.StatusOK, gin.H{
			"plainToken":     plainToken,
			"encryptedToken": h.challengeResponse(plainToken),
		})
		return
	}

	if !h.authorized(c) {
		h.logger.Warn("webhook rejected: invalid secret token")
		response.Unauthorized(c, "invalid webhook secret")
		return
	}

	if event.Event != eventRecordingCompleted {
		c.String(http.StatusOK, "ignored")
		return
	}

	meetingID := string(event.Payload.Object.ID)
	if meetingID == "" {
		meetingID = string(event.Payload.Object.MeetingID)
	}
	meetingUUID := event.Payload.Object.UUID
	h.logger.Info("recording completed",
		zap.String("meeting_id", meetingID),
		zap.String("meeting_uuid", meetingUUID))

	result, err := h.ingestor.Ingest(c.Request.Context(), meetingID, meetingUUID)
	if err != nil {
		h.logger.Error("webhook ingestion failed", zap.Error(err), zap.String("meeting_id", meetingID))
		c.String(http.StatusInternalServerError, "server error")
		return
	}
	if result.NoSession {
		c.String(http.StatusOK, "no session")
		return
	}
	c.String(http.StatusOK, "ok")
}
