package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-local/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reportsCollection = "overlap_reports"

type ReportsRepository struct {
	mongoRepo *MongoRepository
}

func NewReportsRepository(mongoRepo *MongoRepository) *ReportsRepository {
	return &ReportsRepository{
		mongoRepo: mongoRepo,
	}
}

// EnsureIndexes creates the unique checkId index and the submission lookup index
func (r *ReportsRepository) EnsureIndexes(ctx context.Context) error {
	err := r.mongoRepo.CreateIndex(ctx, reportsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "checkId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create checkId index: %w", err)
	}

	err = r.mongoRepo.CreateIndex(ctx, reportsCollection, mongo.IndexModel{
		Keys: bson.D{{Key: "submissionId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create submissionId index: %w", err)
	}

	return nil
}

// SaveReport upserts a report by check id so redelivered checks overwrite
// their earlier attempt.
func (r *ReportsRepository) SaveReport(ctx context.Context, report *models.CheckReport) error {
	report.CreatedAt = time.Now()

	filter := bson.M{"checkId": report.CheckID}
	opts := options.Replace().SetUpsert(true)

	if err := r.mongoRepo.ReplaceOne(ctx, reportsCollection, filter, report, opts); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

func (r *ReportsRepository) GetReportByCheckID(ctx context.Context, checkID string) (*models.CheckReport, error) {
	filter := bson.M{"checkId": checkID}

	var report models.CheckReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	report.Provider = models.ParseProvider(string(report.Provider))

	return &report, nil
}

func (r *ReportsRepository) GetReportsBySubmissionID(ctx context.Context, submissionID string, limit int64) ([]*models.CheckReport, error) {
	filter := bson.M{"submissionId": submissionID}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := r.mongoRepo.FindMany(ctx, reportsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*models.CheckReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	for _, report := range reports {
		report.Provider = models.ParseProvider(string(report.Provider))
	}

	return reports, nil
}
