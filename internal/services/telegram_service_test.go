package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/models"
)

func TestTelegramNotifyNewRequest(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramService("bot-token", "-100", logger.Discard())
	s.baseURL = srv.URL

	req := &models.BloodRequest{
		Reference:    "ABC234",
		BloodType:    models.ONegative,
		Units:        2,
		PatientName:  "A <b>B</b>",
		ContactPhone: "9111111111",
		Urgency:      models.UrgencyCritical,
		Location:     models.Location{Address: "MG Road"},
	}
	require.NoError(t, s.NotifyNewRequest(context.Background(), req))

	assert.Equal(t, "/botbot-token/sendMessage", path)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "ABC234")
	assert.Contains(t, got.Text, "O- x 2")
	assert.Contains(t, got.Text, "A &lt;b&gt;B&lt;/b&gt;")
}

func TestTelegramReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewTelegramService("bot-token", "-100", logger.Discard())
	s.baseURL = srv.URL

	err := s.NotifyDonorAccepted(context.Background(), &models.BloodRequest{}, &models.Donor{Name: "Ravi"})
	assert.Error(t, err)
}

func TestTelegramUnconfiguredIsNoop(t *testing.T) {
	s := NewTelegramService("", "", logger.Discard())
	assert.NoError(t, s.NotifyNewRequest(context.Background(), &models.BloodRequest{}))
	assert.NoError(t, s.SendMessage(context.Background(), "1", "hi"))
}
