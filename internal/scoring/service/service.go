// Package service resolves and publishes versioned scoring rules.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	scoringModel "github.com/festy23/contribution_engine/internal/scoring/model"
	"github.com/festy23/contribution_engine/internal/scoring/repository"
)

// Service defines rule set operations.
type Service interface {
	// Resolve returns the rules of projectID effective at the given time,
	// falling back to the built-in defaults (version 0).
	Resolve(ctx context.Context, tx *gorm.DB, projectID string, at time.Time) (scoringModel.RuleSet, error)

	// Publish stores rules as the next version of projectID.
	Publish(
		ctx context.Context,
		projectID string,
		rules scoringModel.RuleSet,
		effectiveFrom time.Time,
	) (*scoringModel.RuleVersion, error)

	// PublishIfChanged publishes rules unless they equal the latest version.
	// The bool reports whether a new version was written.
	PublishIfChanged(
		ctx context.Context,
		projectID string,
		rules scoringModel.RuleSet,
		effectiveFrom time.Time,
	) (*scoringModel.RuleVersion, bool, error)

	// ListVersions returns every version of projectID.
	ListVersions(ctx context.Context, projectID string) ([]scoringModel.RuleVersion, error)
}

type service struct {
	repo   repository.Repository
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new scoring rules service instance.
func New(repo repository.Repository, db *gorm.DB, logger *zap.SugaredLogger) Service {
	return &service{repo: repo, db: db, logger: logger}
}

func (s *service) Resolve(
	ctx context.Context,
	tx *gorm.DB,
	projectID string,
	at time.Time,
) (scoringModel.RuleSet, error) {
	repo := s.repo
	if tx != nil {
		repo = repository.New(tx, s.logger)
	}
	if projectID == "" {
		return scoringModel.DefaultRuleSet(), nil
	}

	v, err := repo.EffectiveAt(ctx, projectID, at)
	if err != nil {
		return scoringModel.RuleSet{}, err
	}
	if v == nil {
		return scoringModel.DefaultRuleSet(), nil
	}
	return v.RuleSet()
}

func (s *service) Publish(
	ctx context.Context,
	projectID string,
	rules scoringModel.RuleSet,
	effectiveFrom time.Time,
) (*scoringModel.RuleVersion, error) {
	v, _, err := s.publish(ctx, projectID, rules, effectiveFrom, false)
	return v, err
}

func (s *service) PublishIfChanged(
	ctx context.Context,
	projectID string,
	rules scoringModel.RuleSet,
	effectiveFrom time.Time,
) (*scoringModel.RuleVersion, bool, error) {
	return s.publish(ctx, projectID, rules, effectiveFrom, true)
}

func (s *service) publish(
	ctx context.Context,
	projectID string,
	rules scoringModel.RuleSet,
	effectiveFrom time.Time,
	skipUnchanged bool,
) (*scoringModel.RuleVersion, bool, error) {
	if projectID == "" {
		return nil, false, fmt.Errorf("%w: project id is required", scoringModel.ErrInvalidRuleSet)
	}
	if err := rules.Validate(); err != nil {
		return nil, false, err
	}

	var (
		out     *scoringModel.RuleVersion
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.New(tx, s.logger)
		latest, err := txRepo.Latest(ctx, projectID)
		if err != nil {
			return err
		}

		next := 1
		if latest != nil {
			if skipUnchanged && sameRules(latest, rules) {
				out = latest
				return nil
			}
			next = latest.Version + 1
		}

		v, err := scoringModel.NewRuleVersion(projectID, next, rules, effectiveFrom)
		if err != nil {
			return err
		}
		if err := txRepo.Create(ctx, v); err != nil {
			return err
		}
		out, created = v, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Infow("rule version published", "project_id", projectID, "version", out.Version)
	}
	return out, created, nil
}

func sameRules(v *scoringModel.RuleVersion, rules scoringModel.RuleSet) bool {
	stored, err := v.RuleSet()
	if err != nil {
		return false
	}
	stored.Version, rules.Version = 0, 0
	a, errA := json.Marshal(stored)
	b, errB := json.Marshal(rules)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (s *service) ListVersions(ctx context.Context, projectID string) ([]scoringModel.RuleVersion, error) {
	return s.repo.List(ctx, projectID)
}
