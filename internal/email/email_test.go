package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"qaforum/internal/config"
	"qaforum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender(t *testing.T) {
	s, err := NewSender(&config.Config{EmailProvider: "console"})
	require.NoError(t, err)
	assert.IsType(t, &ConsoleSender{}, s)

	s, err = NewSender(&config.Config{EmailProvider: "sendgrid", SendGridAPIKey: "k", EmailFrom: "no-reply@example.com"})
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, s)

	_, err = NewSender(&config.Config{EmailProvider: "smtp"})
	assert.Error(t, err)
}

func TestSendGridSender_PostsV3Mail(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("sg-key", "QASystem", "no-reply@example.com")
	s.host = srv.URL

	err := s.Send(context.Background(), Message{To: "bob@example.com", ToName: "bob", Subject: "Hi", HTML: "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", auth)

	from := body["from"].(map[string]any)
	assert.Equal(t, "no-reply@example.com", from["email"])
	p := body["personalizations"].([]any)[0].(map[string]any)
	assert.Equal(t, "Hi", p["subject"])
	to := p["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "bob@example.com", to["email"])
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("bad", "QASystem", "no-reply@example.com")
	s.host = srv.URL

	err := s.Send(context.Background(), Message{To: "bob@example.com", Subject: "Hi", HTML: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestConsoleSender_RecordsAndFails(t *testing.T) {
	s := NewConsoleSender(nil)
	require.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "one"}))
	assert.Len(t, s.Sent(), 1)

	s.Fail = errors.New("smtp down")
	assert.Error(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "two"}))
	assert.Len(t, s.Sent(), 1)
}

func TestReportFiled(t *testing.T) {
	owner := &models.User{Username: "carol", Email: "carol@example.com"}

	msg, err := ReportFiled(owner, "question", "<script>x</script>", "spam")
	require.NoError(t, err)
	assert.Equal(t, "Your Question Has Been Reported", msg.Subject)
	assert.Equal(t, "carol@example.com", msg.To)
	assert.Contains(t, msg.HTML, "spam")
	assert.NotContains(t, msg.HTML, "<script>")

	msg, err = ReportFiled(owner, "answer", "", "rude")
	require.NoError(t, err)
	assert.Equal(t, "Your Answer Has Been Reported", msg.Subject)
}

func TestStatusChanged_Variants(t *testing.T) {
	owner := &models.User{Username: "dan", Email: "dan@example.com"}

	tests := []struct {
		status  models.ReportStatus
		kind    string
		subject string
		phrase  string
	}{
		{models.ReportAccepted, "question", "Your Question Has Been Disabled", "has been disabled"},
		{models.ReportPending, "question", "Your Question Is Under Review Again", "reviewed again"},
		{models.ReportDisabled, "answer", "Your Answer Has Been Restored", "has been restored"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			msg, err := StatusChanged(owner, tt.kind, "Title & more", tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.HTML, tt.phrase)
			assert.Contains(t, msg.HTML, "Dear dan")
		})
	}

	msg, err := StatusChanged(owner, "question", "<i>t</i>", models.ReportAccepted)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "&lt;i&gt;t&lt;/i&gt;")
}

func TestPasswordReset(t *testing.T) {
	msg, err := PasswordReset("eve@example.com", "https://forum.example.com/reset?user_id=1&token=abc")
	require.NoError(t, err)
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Contains(t, msg.HTML, "token=abc")
}
