package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/models"
)

// AdminNotifier alerts operators about request activity.
type AdminNotifier interface {
	NotifyNewRequest(ctx context.Context, req *models.BloodRequest) error
	NotifyDonorAccepted(ctx context.Context, req *models.BloodRequest, donor *models.Donor) error
}

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
	log         *logrus.Entry
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log logrus.FieldLogger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         logger.Component(log, "telegram"),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("failed to send message")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Warn("unexpected status")
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat id not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// NotifyNewRequest tells the admin chat a request was created.
func (s *TelegramService) NotifyNewRequest(ctx context.Context, req *models.BloodRequest) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(ctx, formatNewRequest(req))
}

// NotifyDonorAccepted tells the admin chat a donor agreed to help.
func (s *TelegramService) NotifyDonorAccepted(ctx context.Context, req *models.BloodRequest, donor *models.Donor) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(ctx, formatDonorAccepted(req, donor))
}

func formatNewRequest(req *models.BloodRequest) string {
	hospital := req.Hospital
	if hospital == "" {
		hospital = "-"
	}
	message := fmt.Sprintf(`<b>🩸 NEW BLOOD REQUEST</b>
<b>📋 Reference:</b> %s
<b>🅰️ Blood type:</b> %s x %d
<b>🧑 Patient:</b> %s
<b>🏥 Hospital:</b> %s
<b>📍 Address:</b> %s
<b>📞 Contact:</b> %s
<b>⚠️ Urgency:</b> %s
━━━━━━━━━━━━━━━━━━`,
		req.Reference,
		req.BloodType,
		req.Units,
		html.EscapeString(req.PatientName),
		html.EscapeString(hospital),
		html.EscapeString(req.Location.Address),
		req.ContactPhone,
		req.Urgency,
	)
	return strings.TrimSpace(message)
}

func formatDonorAccepted(req *models.BloodRequest, donor *models.Donor) string {
	message := fmt.Sprintf(`<b>✅ DONOR ACCEPTED</b>
<b>📋 Reference:</b> %s
<b>🅰️ Blood type:</b> %s
<b>🧑 Donor:</b> %s (%s)
<b>📞 Requester:</b> %s
━━━━━━━━━━━━━━━━━━`,
		req.Reference,
		req.BloodType,
		html.EscapeString(donor.Name),
		donor.Phone,
		req.ContactPhone,
	)
	return strings.TrimSpace(message)
}
