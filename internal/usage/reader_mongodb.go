package usage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBReader implements UsageReader for MongoDB.
type MongoDBReader struct {
	collection *mongo.Collection
}

// NewMongoDBReader creates a new MongoDB usage reader.
func NewMongoDBReader(database *mongo.Database) (*MongoDBReader, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBReader{collection: database.Collection(usageCollection)}, nil
}

func mongoFilter(params UsageQueryParams) bson.D {
	filter := bson.D{}
	if params.ProjectID != "" {
		filter = append(filter, bson.E{Key: "project_id", Value: params.ProjectID})
	}
	created := bson.D{}
	if !params.StartDate.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: params.StartDate.UTC()})
	}
	if !params.EndDate.IsZero() {
		created = append(created, bson.E{Key: "$lte", Value: params.EndDate.UTC()})
	}
	if len(created) > 0 {
		filter = append(filter, bson.E{Key: "created_at", Value: created})
	}
	return filter
}

func (r *MongoDBReader) GetSummary(ctx context.Context, params UsageQueryParams) (*UsageSummary, error) {
	pipeline := bson.A{
		bson.D{{Key: "$match", Value: mongoFilter(params)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_requests", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "successful", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$success", 1, 0}},
			}}}},
			{Key: "total_input", Value: bson.D{{Key: "$sum", Value: "$input_tokens"}}},
			{Key: "total_output", Value: bson.D{{Key: "$sum", Value: "$output_tokens"}}},
			{Key: "total_cost", Value: bson.D{{Key: "$sum", Value: "$cost_usd"}}},
			{Key: "avg_response", Value: bson.D{{Key: "$avg", Value: "$response_time_ms"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage summary: %w", err)
	}
	defer cursor.Close(ctx)

	summary := &UsageSummary{}
	if cursor.Next(ctx) {
		var row struct {
			TotalRequests int     `bson:"total_requests"`
			Successful    int     `bson:"successful"`
			TotalInput    int64   `bson:"total_input"`
			TotalOutput   int64   `bson:"total_output"`
			TotalCost     float64 `bson:"total_cost"`
			AvgResponse   float64 `bson:"avg_response"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode usage summary: %w", err)
		}
		summary.TotalRequests = row.TotalRequests
		summary.SuccessfulRequests = row.Successful
		summary.TotalInputTokens = row.TotalInput
		summary.TotalOutputTokens = row.TotalOutput
		summary.TotalCostUSD = row.TotalCost
		summary.AvgResponseTimeMs = row.AvgResponse
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error reading usage summary: %w", err)
	}
	return finishSummary(summary), nil
}

func (r *MongoDBReader) GetModelUsage(ctx context.Context, params UsageQueryParams) ([]ModelUsage, error) {
	pipeline := bson.A{
		bson.D{{Key: "$match", Value: mongoFilter(params)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "model_id", Value: "$model_id"},
				{Key: "model_type", Value: "$model_type"},
			}},
			{Key: "requests", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tokens", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$add", Value: bson.A{"$input_tokens", "$output_tokens"}},
			}}}},
			{Key: "cost", Value: bson.D{{Key: "$sum", Value: "$cost_usd"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate model usage: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]ModelUsage, 0)
	for cursor.Next(ctx) {
		var row struct {
			ID struct {
				ModelID   string `bson:"model_id"`
				ModelType string `bson:"model_type"`
			} `bson:"_id"`
			Requests int     `bson:"requests"`
			Tokens   int64   `bson:"tokens"`
			Cost     float64 `bson:"cost"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode model usage: %w", err)
		}
		result = append(result, ModelUsage{
			ModelID:   row.ID.ModelID,
			ModelType: row.ID.ModelType,
			Requests:  row.Requests,
			Tokens:    row.Tokens,
			CostUSD:   row.Cost,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error reading model usage: %w", err)
	}

	sortModelUsage(result)
	return result, nil
}

func (r *MongoDBReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)
	filter := mongoFilter(params.UsageQueryParams)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage logs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer cursor.Close(ctx)

	page := &LogPage{Logs: make([]UsageEntry, 0), TotalCount: int(total), Limit: limit, Offset: offset}
	if err := cursor.All(ctx, &page.Logs); err != nil {
		return nil, fmt.Errorf("failed to decode usage logs: %w", err)
	}
	for i := range page.Logs {
		page.Logs[i].CreatedAt = page.Logs[i].CreatedAt.UTC()
	}
	return page, nil
}
