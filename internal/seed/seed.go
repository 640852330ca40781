package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"sort"

	"qaforum/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Options tune a seeding run.
type Options struct {
	Users       int     `yaml:"users"`
	Questions   int     `yaml:"questions"`
	MaxAnswers  int     `yaml:"max_answers"`
	VoteRatio   float64 `yaml:"vote_ratio"`
	ReportRatio float64 `yaml:"report_ratio"`
	Materials   int     `yaml:"materials"`
	MaxDays     int     `yaml:"max_days"`

	RandSeed int64 `yaml:"-"`
	FastHash bool  `yaml:"-"`
}

// Result counts what a run created.
type Result struct {
	Users     int
	Questions int
	Answers   int
	Votes     int
	Reports   int
	Materials int
}

//go:embed presets.yml
var presetsYAML []byte

// Presets parses the embedded preset table.
func Presets() (map[string]Options, error) {
	out := map[string]Options{}
	if err := yaml.Unmarshal(presetsYAML, &out); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return out, nil
}

// PresetNames lists the available preset names in sorted order.
func PresetNames() []string {
	presets, err := Presets()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seeder populates a database with forum content.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a Seeder for db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// clearTables lists tables children first.
var clearTables = []string{
	"notifications",
	"reports",
	"votes",
	"materials",
	"question_tags",
	"answers",
	"questions",
	"tags",
	"users",
}

// ClearAll deletes every row from the forum tables.
func (s *Seeder) ClearAll() error {
	log.Println("🧹 Clearing forum tables...")
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range clearTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// ApplyPreset runs the named preset.
func (s *Seeder) ApplyPreset(ctx context.Context, name string) (Result, error) {
	presets, err := Presets()
	if err != nil {
		return Result{}, err
	}
	opts, ok := presets[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return s.Run(ctx, opts)
}

// Run creates users, then questions with answers, then votes, reports and
// materials spread across them.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.Users <= 0 {
		return res, fmt.Errorf("seed needs at least one user")
	}
	f := NewFactory(s.db, opts)

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)
	log.Printf("👤 Created %d users", res.Users)

	pick := func() *models.User { return users[f.rng.Intn(len(users))] }

	var targets []models.Target
	for i := 0; i < opts.Questions; i++ {
		q, err := f.CreateQuestion(ctx, pick())
		if err != nil {
			return res, fmt.Errorf("create question: %w", err)
		}
		res.Questions++
		targets = append(targets, models.QuestionTarget(q.ID))

		if opts.MaxAnswers <= 0 {
			continue
		}
		for j := f.rng.Intn(opts.MaxAnswers + 1); j > 0; j-- {
			a, err := f.CreateAnswer(q, pick())
			if err != nil {
				return res, fmt.Errorf("create answer: %w", err)
			}
			res.Answers++
			targets = append(targets, models.AnswerTarget(a.ID))
		}
	}
	log.Printf("❓ Created %d questions and %d answers", res.Questions, res.Answers)

	for _, target := range targets {
		for _, voter := range users {
			if f.rng.Float64() >= opts.VoteRatio {
				continue
			}
			if _, err := f.CreateVote(voter, target); err != nil {
				return res, fmt.Errorf("create vote: %w", err)
			}
			res.Votes++
		}
		if f.rng.Float64() < opts.ReportRatio {
			if _, err := f.CreateReport(pick(), target); err != nil {
				return res, fmt.Errorf("create report: %w", err)
			}
			res.Reports++
		}
	}
	log.Printf("🗳️ Created %d votes and %d reports", res.Votes, res.Reports)

	for i := 0; i < opts.Materials; i++ {
		if _, err := f.CreateMaterial(pick()); err != nil {
			return res, fmt.Errorf("create material: %w", err)
		}
		res.Materials++
	}
	log.Printf("📚 Created %d materials", res.Materials)
	return res, nil
}
