package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/exstem-engine/internal/config"
	"github.com/stemsi/exstem-engine/internal/database"
	"github.com/stemsi/exstem-engine/internal/logger"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/repository"
	"github.com/stemsi/exstem-engine/internal/service"
	"github.com/stemsi/exstem-engine/internal/validator"
)

// seed-exam loads an exam definition into the catalog and prints tokens
// for local testing. Without -file a small sample exam opening now is used.
func main() {
	var (
		file     string
		students string
		tokenTTL time.Duration
	)
	flag.StringVar(&file, "file", "", "Path to an exam definition in JSON")
	flag.StringVar(&students, "students", "1,2,3", "Comma-separated student ids to issue tokens for")
	flag.DurationVar(&tokenTTL, "token-ttl", 12*time.Hour, "Lifetime of the printed tokens")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	exam, err := loadExam(file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read exam definition")
	}
	if fields := validator.ValidateStruct(exam); fields != nil {
		for field, msg := range fields {
			log.Error().Str("field", field).Msg(msg)
		}
		log.Fatal().Msg("Exam definition is invalid")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	examService := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewExamCache(rdb, cfg.ExamCacheTTL),
		log,
	)
	if err := examService.CreateExam(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	fmt.Println("=== Exam Seeded ===")
	fmt.Printf("ID:           %s\n", exam.ID)
	fmt.Printf("Title:        %s\n", exam.Title)
	fmt.Printf("Window:       %s .. %s\n", exam.StartDate.Format(time.RFC3339), exam.EndDate.Format(time.RFC3339))
	fmt.Printf("Total points: %d\n", exam.TotalPoints)

	verifier := service.NewTokenVerifier(cfg.JWTSecret)
	adminToken, err := verifier.IssueToken(service.TokenTypeAdmin, 1, tokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue admin token")
	}
	fmt.Println("\n=== Tokens ===")
	fmt.Printf("admin:      %s\n", adminToken)

	for _, raw := range strings.Split(students, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			log.Warn().Str("student", raw).Msg("Skipping invalid student id")
			continue
		}
		tok, err := verifier.IssueToken(service.TokenTypeStudent, id, tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Int("student_id", id).Msg("Failed to issue student token")
		}
		fmt.Printf("student %-3d %s\n", id, tok)
	}
}

func loadExam(path string) (*model.Exam, error) {
	if path == "" {
		return sampleExam(time.Now()), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	exam := &model.Exam{}
	if err := json.Unmarshal(raw, exam); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return exam, nil
}

func sampleExam(now time.Time) *model.Exam {
	return &model.Exam{
		Title:            "Contoh Ujian IPA",
		Instructions:     "Kerjakan dengan jujur.",
		DurationMinutes:  30,
		StartDate:        now.Add(-time.Minute),
		EndDate:          now.Add(2 * time.Hour),
		MaxAttempts:      2,
		PassingScore:     60,
		ShuffleQuestions: true,
		ShuffleOptions:   true,
		ShowResults:      true,
		Questions: []model.Question{
			{
				QuestionText: "Berapakah 2 + 3?",
				QuestionType: model.QuestionTypeMultipleChoice,
				Options: []model.Option{
					{ID: "A", Text: "4"},
					{ID: "B", Text: "5", IsCorrect: true},
					{ID: "C", Text: "6"},
				},
				Points: 5,
			},
			{
				QuestionText:  "Matahari terbit dari timur.",
				QuestionType:  model.QuestionTypeTrueFalse,
				CorrectAnswer: "true",
				Points:        3,
			},
			{
				QuestionText:  "Zat hijau daun disebut?",
				QuestionType:  model.QuestionTypeShortAnswer,
				CorrectAnswer: "klorofil",
				Points:        7,
			},
		},
	}
}
