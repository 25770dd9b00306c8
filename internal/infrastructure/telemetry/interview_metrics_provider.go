// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormAssessmentMetricsProvider implements AssessmentMetricsProvider using GORM.
// It queries the assessment_records table directly for aggregated metrics.
type GormAssessmentMetricsProvider struct {
	db *gorm.DB
}

// NewGormAssessmentMetricsProvider creates a new GormAssessmentMetricsProvider.
func NewGormAssessmentMetricsProvider(db *gorm.DB) *GormAssessmentMetricsProvider {
	return &GormAssessmentMetricsProvider{db: db}
}

// GetAssessmentCountsByCategory returns the number of assessment records per risk category.
func (p *GormAssessmentMetricsProvider) GetAssessmentCountsByCategory(ctx context.Context) (map[string]int64, error) {
	type result struct {
		RiskCategory string `gorm:"column:risk_category"`
		Count        int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("assessment_records").
		Select("risk_category, COUNT(*) as count").
		Group("risk_category").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.RiskCategory] = r.Count
	}

	return m, nil
}

// GormCorpusMetricsProvider implements CorpusMetricsProvider using GORM.
type GormCorpusMetricsProvider struct {
	db *gorm.DB
}

// NewGormCorpusMetricsProvider creates a new GormCorpusMetricsProvider.
func NewGormCorpusMetricsProvider(db *gorm.DB) *GormCorpusMetricsProvider {
	return &GormCorpusMetricsProvider{db: db}
}

// GetChunkCountsBySpecialty returns the number of knowledge chunks per specialty corpus.
func (p *GormCorpusMetricsProvider) GetChunkCountsBySpecialty(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Specialty string `gorm:"column:specialty"`
		Count     int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("knowledge_chunks").
		Select("specialty, COUNT(*) as count").
		Group("specialty").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Specialty] = r.Count
	}

	return m, nil
}
