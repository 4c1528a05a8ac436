package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/database"
	"github.com/stemsi/exam-conduct/internal/logger"
)

// seed-exam creates a demo exam with mandatory and optional exercise groups
// and registers a range of users for it.
func main() {
	var (
		students  int
		firstUser int
		target    int
	)
	flag.IntVar(&students, "students", 50, "Number of users to register")
	flag.IntVar(&firstUser, "first-user", 1, "User ID of the first registered user")
	flag.IntVar(&target, "target", 4, "Number of exercises per student exam")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	groups := []struct {
		title     string
		mandatory bool
		exercises []string
	}{
		{"Aljabar", true, []string{"Persamaan Linear", "Sistem Persamaan", "Pertidaksamaan"}},
		{"Geometri", true, []string{"Luas Segitiga", "Keliling Lingkaran"}},
		{"Statistika", false, []string{"Rata-rata", "Median", "Modus"}},
		{"Peluang", false, []string{"Kombinasi", "Permutasi"}},
		{"Trigonometri", false, []string{"Sudut Istimewa", "Identitas Trigonometri"}},
	}

	examID := uuid.New()
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO exams (id, title, number_of_exercises_in_exam, working_time_seconds, randomize_exercise_order)
			VALUES ($1, $2, $3, $4, TRUE)`,
			examID, "Ujian Matematika Semester Ganjil", target, 90*60,
		); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		for i, g := range groups {
			var groupID int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO exercise_groups (exam_id, title, position, mandatory)
				VALUES ($1, $2, $3, $4) RETURNING id`,
				examID, g.title, i, g.mandatory,
			).Scan(&groupID); err != nil {
				return fmt.Errorf("insert group %q: %w", g.title, err)
			}

			for _, title := range g.exercises {
				if _, err := tx.Exec(ctx,
					`INSERT INTO exercises (exercise_group_id, title) VALUES ($1, $2)`,
					groupID, title,
				); err != nil {
					return fmt.Errorf("insert exercise %q: %w", title, err)
				}
			}
		}

		rows := make([][]any, students)
		for i := range rows {
			rows[i] = []any{examID, firstUser + i}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"exam_registered_users"},
			[]string{"exam_id", "user_id"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("register users: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	log.Info().
		Str("exam_id", examID.String()).
		Int("groups", len(groups)).
		Int("registered_users", students).
		Msg("Seed completed")
	fmt.Println(examID)
}
