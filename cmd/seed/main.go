package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/config"
	"smooshr/backend/internal/logging"
	"smooshr/backend/internal/repository"
	"smooshr/backend/pkg/models"
)

// seedFile lists workflows to create. Schemas use the same field names as
// the JSON API.
type seedFile struct {
	Workflows []struct {
		Title  string         `yaml:"title"`
		Schema map[string]any `yaml:"schema"`
	} `yaml:"workflows"`
}

func main() {
	ctx := context.Background()

	configFile := flag.String("config", "", "Path to config file")
	seedPath := flag.String("file", "", "YAML file with workflows to seed (defaults to a built-in demo)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Format: "console"})
	defer logger.Sync()

	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	// 1. Ensure the dev user exists
	owner, err := repo.GetUser(ctx, auth.DevUser.ID)
	if err != nil {
		logger.Info("Creating dev user", "id", auth.DevUser.ID)
		u := auth.DevUser
		u.CreatedDate = time.Now().UTC()
		if err := repo.CreateUser(ctx, &u); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		owner = &u
	} else {
		logger.Info("Found existing user", "id", owner.ID)
	}

	// 2. Load the workflows to seed
	seeds, err := loadSeeds(*seedPath)
	if err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}

	// 3. Skip titles that already exist
	existing, err := repo.ListWorkflows(ctx, owner.ID)
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}
	existingTitles := make(map[string]bool)
	for _, w := range existing {
		existingTitles[w.Title] = true
	}

	for _, s := range seeds {
		if existingTitles[s.Title] {
			logger.Info("Skipping existing workflow", "title", s.Title)
			continue
		}
		wf := &models.Workflow{
			ID:          uuid.NewString(),
			Title:       s.Title,
			Owner:       owner.ID,
			CreatedDate: time.Now().UTC(),
			Schema:      s.Schema,
		}
		if err := repo.CreateWorkflow(ctx, wf); err != nil {
			logger.Error("Failed to create workflow", "title", s.Title, "error", err)
			continue
		}
		logger.Info("Seeded workflow", "title", s.Title, "id", wf.ID)
	}
	logger.Info("Seeding complete!")
}

type seed struct {
	Title  string
	Schema models.WorkflowSchema
}

func loadSeeds(path string) ([]seed, error) {
	data := []byte(demoSeed)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	seeds := make([]seed, 0, len(f.Workflows))
	for _, w := range f.Workflows {
		schema := models.NewEmptySchema()
		if w.Schema != nil {
			// Round trip through JSON so the schema's own decoders apply.
			raw, err := json.Marshal(w.Schema)
			if err != nil {
				return nil, fmt.Errorf("workflow %q: %w", w.Title, err)
			}
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("workflow %q: %w", w.Title, err)
			}
		}
		if err := schema.Validate(); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", w.Title, err)
		}
		seeds = append(seeds, seed{Title: w.Title, Schema: schema})
	}
	return seeds, nil
}

const demoSeed = `
workflows:
  - title: Empty workflow
  - title: Customer intake
    schema:
      version: "0.1"
      params:
        - id: region-param
          name: region
          displayName: Region
          description: Sales region of the upload
          required: true
          type: string
        - id: segments-param
          name: segments
          displayName: Segments
          description: Segments accepted in this upload
          required: false
          type: string list
      fieldsetSchemas:
        - id: customers-fs
          name: Customers
          orderMatters: true
          allowExtraColumns: onlyAfterSchemaFields
          fields:
            - id: f-id
              name: customer_id
              required: true
              caseSensitive: true
              allowEmptyValues: false
              dataTypeValidation: {dataType: number}
              allowedValues: []
            - id: f-signup
              name: signup_date
              required: true
              caseSensitive: true
              allowEmptyValues: false
              dataTypeValidation: {dataType: timestamp, dateTimeFormat: "%Y-%m-%d"}
              allowedValues: []
            - id: f-segment
              name: segment
              required: false
              caseSensitive: false
              allowEmptyValues: true
              dataTypeValidation: {dataType: any}
              allowedValues: {paramId: segments-param}
      operations:
        - type: fileTypeValidation
          id: op-type
          title: Check file type
          description: null
          expectedFileType: .csv
        - type: rowCountValidation
          id: op-rows
          title: Check row counts
          description: null
          minRowCount: 1
          maxRowCount: null
        - type: fieldsetSchemaValidation
          id: op-cols
          title: Apply column ruleset
          description: null
          fieldsetSchema: customers-fs
`
