package email

import (
	"bytes"
	"fmt"
	"html/template"

	"qaforum/internal/models"
)

const signature = `<br/><br/>Regards,<br/>QASystem Team`

var (
	reportedQuestionTmpl = template.Must(template.New("reported_question").Parse(
		`Dear {{.Username}},<br/><br/>Your question titled '<strong>{{.Title}}</strong>' has been reported for the following reason: {{.Reason}}.<br/>` +
			`Please review our community guidelines. If you have any questions, contact our support team.` + signature))

	reportedAnswerTmpl = template.Must(template.New("reported_answer").Parse(
		`Dear {{.Username}},<br/><br/>Your answer to a question has been reported for the following reason: {{.Reason}}.<br/>` +
			`Please review our community guidelines. If you have any questions, contact our support team.` + signature))

	statusTmpl = template.Must(template.New("status").Parse(
		`Dear {{.Username}},<br/><br/>{{.Lead}}<br/>{{.Closing}}` + signature))

	resetTmpl = template.Must(template.New("reset").Parse(
		`Please reset your password by clicking <a href="{{.Link}}">here</a>.`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ReportFiled tells the owner that their content was reported. title is
// empty for answers.
func ReportFiled(to *models.User, kind, title, reason string) (Message, error) {
	data := map[string]string{"Username": to.Username, "Title": title, "Reason": reason}
	msg := Message{To: to.Email, ToName: to.Username}

	var err error
	if kind == "question" {
		msg.Subject = "Your Question Has Been Reported"
		msg.HTML, err = render(reportedQuestionTmpl, data)
	} else {
		msg.Subject = "Your Answer Has Been Reported"
		msg.HTML, err = render(reportedAnswerTmpl, data)
	}
	return msg, err
}

// StatusChanged tells the owner about a moderation decision on their content.
func StatusChanged(to *models.User, kind, title string, status models.ReportStatus) (Message, error) {
	subject, lead, closing := statusCopy(kind, title, status)
	html, err := render(statusTmpl, struct {
		Username string
		Lead     template.HTML
		Closing  string
	}{to.Username, lead, closing})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to.Email, ToName: to.Username, Subject: subject, HTML: html}, nil
}

func statusCopy(kind, title string, status models.ReportStatus) (string, template.HTML, string) {
	noun := "Your answer"
	subjectNoun := "Your Answer"
	if kind == "question" {
		noun = "Your question '<strong>" + template.HTMLEscapeString(title) + "</strong>'"
		subjectNoun = "Your Question"
	}

	switch status {
	case models.ReportAccepted:
		return subjectNoun + " Has Been Disabled",
			template.HTML(noun + " has been disabled for violating our rules."),
			"Please review our community guidelines. If you have any questions, contact our support team."
	case models.ReportPending:
		return subjectNoun + " Is Under Review Again",
			template.HTML(noun + " is being reviewed again following a report."),
			"We will let you know the outcome once the review is complete."
	default:
		return subjectNoun + " Has Been Restored",
			template.HTML(noun + " has been restored after the report was reviewed."),
			"Thank you for following our community guidelines."
	}
}

// PasswordReset carries the reset link.
func PasswordReset(to, link string) (Message, error) {
	html, err := render(resetTmpl, map[string]string{"Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password Reset Request", HTML: html}, nil
}
