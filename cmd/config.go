package main

import (
	"time"

	"github.com/spf13/viper"
)

// Config keys.
const (
	ConfRetryStartWait  = "retry.start_wait"
	ConfRetryMaxWait    = "retry.max_wait"
	ConfRetryMaxRetries = "retry.max_retries"

	ConfCompactorIdleWait = "compactor.idle_wait"
)

func init() {
	viper.SetDefault(ConfRetryStartWait, time.Second)
	viper.SetDefault(ConfRetryMaxWait, time.Minute)
	viper.SetDefault(ConfRetryMaxRetries, 0)

	viper.SetDefault(ConfCompactorIdleWait, time.Second)
}
