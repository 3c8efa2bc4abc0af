package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"ambient-quiz-service/internal/logging"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// MonitorRedis adds tracing, metrics and debug-level command logging to r.
func MonitorRedis(r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{})
	return nil
}

type redisLog struct{}

func (redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		log := logging.WithContext(ctx).WithFields(logrus.Fields{"network": network, "addr": addr})
		log.Debug("redis: dialing")
		conn, err := hook(ctx, network, addr)
		if err != nil {
			log.WithError(err).Warn("redis: dial failed")
			return conn, err
		}
		log.Debug("redis: dialed")
		return conn, nil
	}
}

func (redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		entry := logging.WithContext(ctx).WithFields(logrus.Fields{
			"cmd":         cmd.Name(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil && err != redis.Nil {
			entry.WithError(err).Warn("redis: command failed")
		} else {
			entry.Debug("redis: command processed")
		}
		return err
	}
}

func (redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		entry := logging.WithContext(ctx).WithFields(logrus.Fields{
			"cmds":        len(cmds),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("redis: pipeline failed")
		} else {
			entry.Debug("redis: pipeline processed")
		}
		return err
	}
}
