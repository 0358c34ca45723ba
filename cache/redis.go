package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"track-tamper-detector/models"
)

const (
	keyAlertSeq    = "alerts:seq"
	keyAlertIndex  = "alerts:index"
	alertKeyPrefix = "alert:"
	activePrefix   = "alerts:active:"
)

func alertKey(id int64) string        { return alertKeyPrefix + strconv.FormatInt(id, 10) }
func activeKey(nodeID string) string  { return activePrefix + nodeID }
func readingKey(nodeID string) string { return "reading:" + nodeID }

// recordAlertScript claims the node's active marker and writes the alert in
// one step, or bumps last_seen on the alert the marker already points at.
// KEYS: active marker, id sequence, alert index.
// ARGV: alert key prefix, last_seen, then field/value pairs of the alert.
var recordAlertScript = redis.NewScript(`
local active = redis.call('GET', KEYS[1])
if active then
	redis.call('HSET', ARGV[1] .. active, 'last_seen', ARGV[2])
	return {tonumber(active), 0}
end
local id = redis.call('INCR', KEYS[2])
local sid = tostring(id)
redis.call('HSET', ARGV[1] .. sid, 'id', sid, unpack(ARGV, 3))
redis.call('ZADD', KEYS[3], sid, sid)
redis.call('SET', KEYS[1], sid)
return {id, 1}
`)

// setFieldScript sets one field on an existing alert hash.
// KEYS: alert key. ARGV: field, value. Returns 0 when the alert is missing.
var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// resolveScript marks an alert FIXED and clears its node's active marker if
// the marker still points at it.
// KEYS: alert key. ARGV: fixed status, active marker prefix, alert id.
var resolveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
local marker = ARGV[2] .. redis.call('HGET', KEYS[1], 'node_id')
if redis.call('GET', marker) == ARGV[3] then
	redis.call('DEL', marker)
end
return 1
`)

// RedisClient is the Redis-backed Store. Each alert is a hash under
// alert:<id>, indexed by id in a sorted set; alerts:active:<node> holds the
// id of the node's open alert. Alerts are never deleted.
type RedisClient struct {
	client     *redis.Client
	readingTTL time.Duration
}

var _ Store = (*RedisClient)(nil)

func NewRedisClient(ctx context.Context, addr string, readingTTL time.Duration) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &RedisClient{
		client:     rdb,
		readingTTL: readingTTL,
	}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) RecordAlert(ctx context.Context, candidate models.Alert) (models.Alert, bool, error) {
	args := []interface{}{alertKeyPrefix, formatTime(candidate.LastSeen)}
	args = append(args, alertFields(candidate)...)

	res, err := recordAlertScript.Run(ctx, rc.client,
		[]string{activeKey(candidate.NodeID), keyAlertSeq, keyAlertIndex}, args...).Slice()
	if err != nil {
		return models.Alert{}, false, fmt.Errorf("record alert for %s: %w", candidate.NodeID, err)
	}
	if len(res) != 2 {
		return models.Alert{}, false, fmt.Errorf("record alert for %s: unexpected reply %v", candidate.NodeID, res)
	}
	id, _ := res[0].(int64)
	created, _ := res[1].(int64)

	alert, err := rc.getAlert(ctx, id)
	if err != nil {
		return models.Alert{}, false, err
	}
	return alert, created == 1, nil
}

func (rc *RedisClient) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	ids, err := rc.client.ZRange(ctx, keyAlertIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = rc.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, alertKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(ids))
	for i, cmd := range cmds {
		a, err := decodeAlert(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("decode alert %s: %w", ids[i], err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (rc *RedisClient) MarkConstruction(ctx context.Context, id int64) (models.Alert, error) {
	ok, err := setFieldScript.Run(ctx, rc.client, []string{alertKey(id)}, "is_construction", "1").Int64()
	if err != nil {
		return models.Alert{}, fmt.Errorf("mark alert %d: %w", id, err)
	}
	if ok == 0 {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlertNotFound)
	}
	return rc.getAlert(ctx, id)
}

func (rc *RedisClient) ResolveAlert(ctx context.Context, id int64) (models.Alert, error) {
	ok, err := resolveScript.Run(ctx, rc.client, []string{alertKey(id)},
		models.AlertFixed, activePrefix, strconv.FormatInt(id, 10)).Int64()
	if err != nil {
		return models.Alert{}, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	if ok == 0 {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlertNotFound)
	}
	return rc.getAlert(ctx, id)
}

func (rc *RedisClient) SaveReading(ctx context.Context, update models.SensorUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, readingKey(update.NodeID), data, rc.readingTTL).Err()
}

func (rc *RedisClient) GetReading(ctx context.Context, nodeID string) (*models.SensorUpdate, error) {
	val, err := rc.client.Get(ctx, readingKey(nodeID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var update models.SensorUpdate
	if err := json.Unmarshal([]byte(val), &update); err != nil {
		return nil, err
	}
	return &update, nil
}

func (rc *RedisClient) getAlert(ctx context.Context, id int64) (models.Alert, error) {
	fields, err := rc.client.HGetAll(ctx, alertKey(id)).Result()
	if err != nil {
		return models.Alert{}, fmt.Errorf("load alert %d: %w", id, err)
	}
	if len(fields) == 0 {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlertNotFound)
	}
	return decodeAlert(fields)
}

// alertFields flattens everything but the id into HSET arguments.
func alertFields(a models.Alert) []interface{} {
	return []interface{}{
		"node_id", a.NodeID,
		"lat", strconv.FormatFloat(a.Lat, 'g', -1, 64),
		"lng", strconv.FormatFloat(a.Lng, 'g', -1, 64),
		"location_name", a.LocationName,
		"severity", a.Severity,
		"status", a.Status,
		"is_construction", formatBool(a.IsConstruction),
		"timestamp", formatTime(a.Timestamp),
		"last_seen", formatTime(a.LastSeen),
	}
}

func decodeAlert(f map[string]string) (models.Alert, error) {
	var (
		a   models.Alert
		err error
	)
	if a.ID, err = strconv.ParseInt(f["id"], 10, 64); err != nil {
		return a, fmt.Errorf("id: %w", err)
	}
	if a.Lat, err = strconv.ParseFloat(f["lat"], 64); err != nil {
		return a, fmt.Errorf("lat: %w", err)
	}
	if a.Lng, err = strconv.ParseFloat(f["lng"], 64); err != nil {
		return a, fmt.Errorf("lng: %w", err)
	}
	if a.Timestamp, err = time.Parse(time.RFC3339Nano, f["timestamp"]); err != nil {
		return a, fmt.Errorf("timestamp: %w", err)
	}
	if a.LastSeen, err = time.Parse(time.RFC3339Nano, f["last_seen"]); err != nil {
		return a, fmt.Errorf("last_seen: %w", err)
	}
	a.NodeID = f["node_id"]
	a.LocationName = f["location_name"]
	a.Severity = f["severity"]
	a.Status = f["status"]
	a.IsConstruction = f["is_construction"] == "1"
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
