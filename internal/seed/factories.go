// Package seed creates demo data for development databases and tests.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"qaforum/internal/models"
	"qaforum/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "SeedPassword1!"

var topicTags = []string{
	"go", "concurrency", "sql", "postgres", "redis", "http", "testing",
	"docker", "kubernetes", "linux", "networking", "security", "frontend", "algorithms",
}

// Factory builds domain entities and persists them.
type Factory struct {
	db        *gorm.DB
	questions repository.QuestionRepository
	opts      Options
	rng       *rand.Rand
	hash      string
}

// NewFactory creates a Factory bound to db. A non-zero opts.RandSeed makes
// the generated content reproducible.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:        db,
		questions: repository.NewQuestionRepository(db),
		opts:      opts,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(h)
	return f.hash, nil
}

// pastTime returns a moment within the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// CreateUser persists a user with a unique generated username.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(gofakeit.Username())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, name)
	if len(name) < 3 {
		name = "user"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	name = fmt.Sprintf("%s%d", name, gofakeit.Number(100, 99999))

	user := &models.User{
		Username:  name,
		Email:     name + "@" + gofakeit.DomainName(),
		Password:  hash,
		Bio:       gofakeit.Sentence(10),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (f *Factory) pickTags() []string {
	n := 1 + f.rng.Intn(3)
	out := make([]string, 0, n)
	for _, i := range f.rng.Perm(len(topicTags))[:n] {
		out = append(out, topicTags[i])
	}
	return out
}

// CreateQuestion persists a question with one to three topic tags.
func (f *Factory) CreateQuestion(ctx context.Context, author *models.User, overrides ...func(*models.Question)) (*models.Question, error) {
	title := strings.TrimSuffix(gofakeit.Question(), "?")
	if len(title) > 180 {
		title = title[:180]
	}
	q := &models.Question{
		UserID:    author.ID,
		Title:     title + "?",
		Content:   "<p>" + gofakeit.Paragraph(1, 3, 12, "</p><p>") + "</p>",
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(q)
	}
	if err := f.questions.Create(ctx, q, f.pickTags()); err != nil {
		return nil, err
	}
	return q, nil
}

// CreateAnswer persists an answer to q written after q was asked.
func (f *Factory) CreateAnswer(q *models.Question, author *models.User) (*models.Answer, error) {
	created := q.CreatedAt.Add(time.Duration(1+f.rng.Intn(72*60)) * time.Minute)
	if created.After(time.Now()) {
		created = time.Now()
	}
	a := &models.Answer{
		QuestionID: q.ID,
		UserID:     author.ID,
		Content:    "<p>" + gofakeit.Paragraph(1, 2, 10, " ") + "</p>",
		CreatedAt:  created,
	}
	if err := f.db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// CreateVote stores a vote of +1 or -1, mostly positive.
func (f *Factory) CreateVote(voter *models.User, target models.Target) (*models.Vote, error) {
	value := 1
	if f.rng.Intn(4) == 0 {
		value = -1
	}
	v := &models.Vote{UserID: voter.ID, QuestionID: target.QuestionID, AnswerID: target.AnswerID, VoteType: value}
	if err := f.db.Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// CreateReport files a pending report against target.
func (f *Factory) CreateReport(reporter *models.User, target models.Target) (*models.Report, error) {
	r := &models.Report{
		UserID:     reporter.ID,
		QuestionID: target.QuestionID,
		AnswerID:   target.AnswerID,
		Reason:     gofakeit.RandomString([]string{"Spam", "Off-topic", "Offensive language", "Duplicate question", "Plagiarism"}),
		Status:     models.ReportPending,
		ReportedAt: f.pastTime(),
	}
	if err := f.db.Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CreateMaterial records a material pointing at a placeholder document.
func (f *Factory) CreateMaterial(author *models.User) (*models.Material, error) {
	uid := author.ID
	m := &models.Material{
		Title:       strings.TrimSuffix(gofakeit.Sentence(4), "."),
		Description: gofakeit.Sentence(15),
		FileLink:    fmt.Sprintf("https://example.com/materials/%s.pdf", gofakeit.UUID()),
		Downloads:   f.rng.Intn(200),
		UserID:      &uid,
		CreatedAt:   f.pastTime(),
	}
	if err := f.db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}
