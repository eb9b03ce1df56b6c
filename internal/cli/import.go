package cli

import (
	"fmt"

	"live-quiz-service/internal/infra/file"
	"live-quiz-service/internal/infra/postgres"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newImportCmd loads a question bank file into Postgres so the server can run off the database.
func newImportCmd(opts *options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a YAML/JSON question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Questions.File
			}
			if path == "" {
				return fmt.Errorf("no question bank given: use --file")
			}

			ctx := cmd.Context()
			questions, err := file.NewQuestionLoader(path).LoadQuestions(ctx)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			n, err := postgres.ImportQuestions(ctx, db, questions)
			if err != nil {
				return err
			}
			log.Info().Int("questions", n).Str("file", path).Msg("question bank imported")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "question bank to import (defaults to questions.file)")
	return cmd
}
