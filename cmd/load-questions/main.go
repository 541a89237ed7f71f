package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/database"
	"github.com/jsacert/exam-engine/internal/logger"
	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
	pgstore "github.com/jsacert/exam-engine/internal/store/postgres"
	sqlitestore "github.com/jsacert/exam-engine/internal/store/sqlite"
)

// questionInput is one bank entry in the questions JSON file.
type questionInput struct {
	Section        string        `json:"section"`
	Type           string        `json:"type"`
	Text           string        `json:"text"`
	CodeSnippet    *string       `json:"code_snippet"`
	Explanation    *string       `json:"explanation"`
	ReferenceURL   *string       `json:"reference_url"`
	ReferenceTitle *string       `json:"reference_title"`
	Answers        []answerInput `json:"answers"`
}

type answerInput struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// questionsFile accepts either a bare array or {"questions": [...]}.
type questionsFile struct {
	Questions []questionInput `json:"questions"`
}

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to questions JSON (default: QUESTIONS_FILE from config)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if filePath == "" {
		filePath = cfg.QuestionsFile
	}

	ctx := context.Background()

	var st store.QuestionStore
	switch cfg.StoreDriver {
	case "sqlite":
		db, err := database.NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite database")
		}
		defer db.Close()
		st, err = sqlitestore.New(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite schema")
		}
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		st = pgstore.New(pool)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	items, err := readQuestionsFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Failed to read questions file")
	}

	var scanned, created, updated, skipped int
	for i, q := range items {
		scanned++
		if err := validate(q); err != nil {
			log.Fatal().Err(err).Int("entry", i).Msg("Invalid question entry")
		}

		existing, err := st.FindQuestionByText(ctx, q.Text)
		switch {
		case err == nil:
			if !metaDiffers(existing, q) {
				skipped++
				continue
			}
			existing.Explanation = q.Explanation
			existing.ReferenceURL = q.ReferenceURL
			existing.ReferenceTitle = q.ReferenceTitle
			if err := st.UpdateQuestionMeta(ctx, existing); err != nil {
				log.Fatal().Err(err).Int64("id", existing.ID).Msg("Failed to update question")
			}
			updated++
		case errors.Is(err, store.ErrNotFound):
			if len(q.Answers) == 0 {
				log.Warn().Str("text", q.Text).Msg("New question has no answers, skipping")
				skipped++
				continue
			}
			if err := create(ctx, st, q); err != nil {
				log.Fatal().Err(err).Int("entry", i).Msg("Failed to create question")
			}
			created++
		default:
			log.Fatal().Err(err).Int("entry", i).Msg("Lookup failed")
		}
	}

	log.Info().
		Int("scanned", scanned).
		Int("created", created).
		Int("updated", updated).
		Int("skipped", skipped).
		Msg("Question bank synced")
}

func readQuestionsFile(path string) ([]questionInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []questionInput
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var wrapped questionsFile
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if wrapped.Questions == nil {
		return nil, fmt.Errorf("%s must be an array or an object with a 'questions' array", path)
	}
	return wrapped.Questions, nil
}

func validate(q questionInput) error {
	if !model.Section(q.Section).Valid() {
		return fmt.Errorf("unknown section %q", q.Section)
	}
	if q.Type != string(model.QuestionTypeSingle) && q.Type != string(model.QuestionTypeMulti) {
		return fmt.Errorf("unknown type %q", q.Type)
	}
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("empty question text")
	}
	if len(q.Answers) > 0 {
		correct := 0
		for _, a := range q.Answers {
			if a.Correct {
				correct++
			}
		}
		if q.Type == string(model.QuestionTypeSingle) && correct != 1 {
			return fmt.Errorf("single-choice question needs exactly 1 correct answer, got %d", correct)
		}
		if q.Type == string(model.QuestionTypeMulti) && correct < 1 {
			return errors.New("multi-choice question needs at least 1 correct answer")
		}
	}
	return nil
}

// metaDiffers compares the syncable fields with CRLF and whitespace folded,
// so editor churn in the JSON file does not count as a change.
func metaDiffers(existing *model.Question, q questionInput) bool {
	return norm(existing.Explanation) != norm(q.Explanation) ||
		norm(existing.ReferenceURL) != norm(q.ReferenceURL) ||
		norm(existing.ReferenceTitle) != norm(q.ReferenceTitle)
}

func norm(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(*s, "\r\n", "\n"))
}

func create(ctx context.Context, st store.QuestionStore, q questionInput) error {
	question := &model.Question{
		Section:        model.Section(q.Section),
		Type:           model.QuestionType(q.Type),
		Text:           q.Text,
		CodeSnippet:    q.CodeSnippet,
		Explanation:    q.Explanation,
		ReferenceURL:   q.ReferenceURL,
		ReferenceTitle: q.ReferenceTitle,
		Active:         true,
	}
	options := make([]model.AnswerOption, len(q.Answers))
	for i, a := range q.Answers {
		options[i] = model.AnswerOption{
			Text:       a.Text,
			IsCorrect:  a.Correct,
			OrderIndex: i,
		}
	}
	return st.CreateQuestion(ctx, question, options)
}
