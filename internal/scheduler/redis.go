package scheduler

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// redisConnOpt parses the Redis URL and converts it to an asynq connection
// option. tlsInsecure disables certificate verification for providers with
// self-signed certificates.
func redisConnOpt(redisURL string, tlsInsecure bool) (asynq.RedisConnOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if tlsInsecure && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return asynq.RedisClientOpt{
		Network:   opt.Network,
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
