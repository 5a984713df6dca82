package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/gridiron/internal/pbp"
)

const (
	// FeatureStream carries every finished game feature set.
	FeatureStream = "pbp.features.nfl"

	// maxStreamLen caps the stream; consumers are expected to keep up.
	maxStreamLen = 10000
)

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: FeatureStream,
		now:    time.Now,
	}
}

// PublishFeatureSet appends a built game to the feature stream.
func (p *RedisStreamPublisher) PublishFeatureSet(ctx context.Context, fs *pbp.GameFeatureSet) error {
	values, err := featureSetValues(fs, p.now())
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", fs.Game.BoxscoreID, p.stream, err)
	}
	return nil
}

// featureSetValues builds the stream entry of a feature set. Summary fields
// sit beside the JSON payload so consumers can filter without decoding it.
func featureSetValues(fs *pbp.GameFeatureSet, now time.Time) (map[string]interface{}, error) {
	data, err := json.Marshal(fs)
	if err != nil {
		return nil, fmt.Errorf("encoding feature set %s: %w", fs.Game.BoxscoreID, err)
	}

	return map[string]interface{}{
		"boxscore_id":       fs.Game.BoxscoreID,
		"season":            fs.Game.Season,
		"home_team_id":      fs.Game.HomeTeamID,
		"away_team_id":      fs.Game.AwayTeamID,
		"plays":             len(fs.Plays),
		"unrecognized_rate": fs.Report.UnrecognizedRate,
		"data":              string(data),
		"timestamp":         now.Unix(),
	}, nil
}
