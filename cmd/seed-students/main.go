package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/database"
	"github.com/stemsi/signquest-backend/internal/logger"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/repository"
	"github.com/stemsi/signquest-backend/internal/service"
)

var names = []string{
	"Mia", "Leo", "Zoe", "Omar", "Ava", "Noah", "Lily", "Kai", "Ella", "Finn",
	"Ruby", "Theo", "Nora", "Ezra", "Ivy", "Milo", "Luna", "Jude", "Aria", "Sami",
}

var emojis = []string{"🐯", "🦊", "🐼", "🐸", "🦁", "🐨", "🐙", "🦄", "🐝", "🐳"}

func main() {
	var (
		teacherEmail string
		count        int
		password     string
		grade        string
	)
	flag.StringVar(&teacherEmail, "teacher", "", "Email of the teacher who owns the seeded students")
	flag.IntVar(&count, "count", len(names), "Number of students to create")
	flag.StringVar(&password, "password", "signs123", "Password for every seeded student")
	flag.StringVar(&grade, "grade", "K", "Grade label")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	teacherRepo := repository.NewTeacherRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	authService := service.NewAuthService(cfg)
	profileService := service.NewProfileService(profileRepo, nil, authService, nil, 0, log)

	var teacherID *int
	if teacherEmail != "" {
		teacher, err := teacherRepo.GetByEmail(ctx, strings.ToLower(teacherEmail))
		if err != nil {
			log.Fatal().Err(err).Str("email", teacherEmail).Msg("Teacher not found")
		}
		teacherID = &teacher.ID
		fmt.Printf("Seeding students for %s (ID %d)\n", teacher.Name, teacher.ID)
	}

	fmt.Printf("=== Seeding %d Students ===\n", count)

	successCount := 0
	for i := 0; i < count; i++ {
		name := names[i%len(names)]
		username := fmt.Sprintf("%s%d", strings.ToLower(name), i+1)

		_, err := profileService.Register(ctx, model.RegisterStudentRequest{
			Username:    username,
			DisplayName: name,
			Password:    password,
			TeacherID:   teacherID,
			Grade:       grade,
			Emoji:       emojis[i%len(emojis)],
		})
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			fmt.Printf("Skipping %s: already exists\n", username)
		case err != nil:
			fmt.Printf("Error creating student %s: %v\n", username, err)
		default:
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d students...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, count)
}
