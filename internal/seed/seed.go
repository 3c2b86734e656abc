// Package seed loads repositories and scoring rule versions from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	projectModel "github.com/festy23/contribution_engine/internal/project/model"
	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
	scoringService "github.com/festy23/contribution_engine/internal/scoring/service"
)

// ErrInvalidSeed indicates a seed file that cannot be applied.
var ErrInvalidSeed = errors.New("invalid seed file")

// File is the on-disk seed document.
type File struct {
	Repositories []RepositoryEntry `yaml:"repositories"`
	Rules        []RulesEntry      `yaml:"rules"`
}

// RepositoryEntry registers one repository with its owning project.
type RepositoryEntry struct {
	ID        string `yaml:"id"`
	ProjectID string `yaml:"project_id"`
	OwnerID   string `yaml:"owner_id"`
	Name      string `yaml:"name"`
}

// RulesEntry is a rule set for one project. Fields left out of Rules keep
// their built-in default values.
type RulesEntry struct {
	ProjectID     string    `yaml:"project_id"`
	EffectiveFrom time.Time `yaml:"effective_from"`
	Rules         yaml.Node `yaml:"rules"`
}

// RuleSet decodes the entry over the default rules and validates the result.
func (e RulesEntry) RuleSet() (scoringModel.RuleSet, error) {
	rs := scoringModel.DefaultRuleSet()
	if !e.Rules.IsZero() {
		if err := e.Rules.Decode(&rs); err != nil {
			return scoringModel.RuleSet{}, fmt.Errorf("%w: rules of %s: %v", ErrInvalidSeed, e.ProjectID, err)
		}
	}
	if err := rs.Validate(); err != nil {
		return scoringModel.RuleSet{}, fmt.Errorf("rules of %s: %w", e.ProjectID, err)
	}
	return rs, nil
}

// Load reads and checks a seed file from path.
func Load(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a seed document.
func Decode(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	for i, repo := range file.Repositories {
		if repo.ID == "" || repo.ProjectID == "" || repo.OwnerID == "" {
			return nil, fmt.Errorf("%w: repository #%d needs id, project_id and owner_id", ErrInvalidSeed, i+1)
		}
	}
	for i, entry := range file.Rules {
		if entry.ProjectID == "" {
			return nil, fmt.Errorf("%w: rules #%d needs project_id", ErrInvalidSeed, i+1)
		}
	}
	return &file, nil
}

// RepositoryWriter stores directory entries.
type RepositoryWriter interface {
	Upsert(ctx context.Context, repo *projectModel.Repository) error
}

// Result counts what Apply changed.
type Result struct {
	Repositories  int `json:"repositories"`
	RulesVersions int `json:"rules_versions"`
	RulesKept     int `json:"rules_kept"`
}

// Seeder writes a seed file into the store.
type Seeder struct {
	repos  RepositoryWriter
	rules  scoringService.Service
	now    func() time.Time
	logger *zap.SugaredLogger
}

// New creates a seeder. now stamps rule entries without effective_from.
func New(repos RepositoryWriter, rules scoringService.Service, now func() time.Time, logger *zap.SugaredLogger) *Seeder {
	return &Seeder{repos: repos, rules: rules, now: now, logger: logger}
}

// Apply upserts every repository and publishes each rule set that differs
// from its project's latest version. Applying the same file twice changes nothing.
func (s *Seeder) Apply(ctx context.Context, file *File) (Result, error) {
	var res Result

	for _, entry := range file.Repositories {
		repo := &projectModel.Repository{
			ID:        entry.ID,
			ProjectID: entry.ProjectID,
			OwnerID:   entry.OwnerID,
			Name:      entry.Name,
		}
		if err := s.repos.Upsert(ctx, repo); err != nil {
			return res, fmt.Errorf("seed repository %s: %w", entry.ID, err)
		}
		res.Repositories++
	}

	for _, entry := range file.Rules {
		rs, err := entry.RuleSet()
		if err != nil {
			return res, err
		}
		from := entry.EffectiveFrom
		if from.IsZero() {
			from = s.now()
		}

		_, created, err := s.rules.PublishIfChanged(ctx, entry.ProjectID, rs, from.UTC())
		if err != nil {
			return res, fmt.Errorf("seed rules of %s: %w", entry.ProjectID, err)
		}
		if created {
			res.RulesVersions++
		} else {
			res.RulesKept++
		}
	}

	s.logger.Infow("seed applied",
		"repositories", res.Repositories,
		"rules_versions", res.RulesVersions,
		"rules_kept", res.RulesKept,
	)
	return res, nil
}
