// Command seed fills a development database with forum content.
package main

import (
	"context"
	"flag"
	"log"

	"qaforum/internal/config"
	"qaforum/internal/database"
	"qaforum/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numQuestions := flag.Int("questions", 80, "Number of questions to create")
	maxAnswers := flag.Int("answers", 5, "Maximum answers per question")
	materials := flag.Int("materials", 15, "Number of materials to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named preset "+listPresets())
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(database.DB)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	ctx := context.Background()
	var res seed.Result
	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring size flags)", *preset)
		res, err = s.ApplyPreset(ctx, *preset)
	} else {
		res, err = s.Run(ctx, seed.Options{
			Users:       *numUsers,
			Questions:   *numQuestions,
			MaxAnswers:  *maxAnswers,
			VoteRatio:   0.3,
			ReportRatio: 0.05,
			Materials:   *materials,
			RandSeed:    *randSeed,
		})
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d users, %d questions, %d answers, %d votes, %d reports, %d materials",
		res.Users, res.Questions, res.Answers, res.Votes, res.Reports, res.Materials)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}

func listPresets() string {
	names := seed.PresetNames()
	out := "("
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out + ")"
}
