package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patiponrmutl/TutorSystem/database"
	"github.com/patiponrmutl/TutorSystem/repository"
	"github.com/patiponrmutl/TutorSystem/services"
)

var sampleTutors = []services.TutorInput{
	{Name: "Asha Rao", Email: "asha@example.com", Phone: "0812345678", Subject: "Mathematics", Bio: "Algebra and calculus for high school students."},
	{Name: "Bala Krishnan", Email: "bala@example.com", Subject: "Physics", Bio: "Mechanics, optics and exam preparation."},
	{Name: "Chen Wei", Email: "chen@example.com", Phone: "0898765432", Subject: "Chemistry"},
	{Name: "Dara Somchai", Email: "dara@example.com", Subject: "English"},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample tutors, skipping emails that already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(db, log); err != nil {
				return err
			}
			svc := services.NewTutorService(repository.NewTutorRepository(db), log)
			_, err = seedTutors(cmd.Context(), svc, log, sampleTutors)
			return err
		},
	}
}

// seedTutors creates each input and reports how many were inserted.
// Existing emails are skipped; any other failure stops the run.
func seedTutors(ctx context.Context, svc *services.TutorService, log *zap.SugaredLogger, inputs []services.TutorInput) (int, error) {
	inserted := 0
	for _, in := range inputs {
		t, err := svc.Create(ctx, in)
		if errors.Is(err, services.ErrDuplicateEmail) {
			log.Infow("tutor already exists, skipping", "email", in.Email)
			continue
		}
		if err != nil {
			return inserted, err
		}
		inserted++
		log.Infow("tutor seeded", "id", t.ID, "email", t.Email)
	}
	return inserted, nil
}
