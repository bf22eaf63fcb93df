package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/mockapi"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg := mockapi.Config{Logger: log.StandardLogger()}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Secret = []byte(secret)
	} else {
		log.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SESSION_TTL: %v", err)
		}
		cfg.SessionTTL = d
	}

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		ttl := 24 * time.Hour
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			ttl = d
		}
		cfg.Deduper = mockapi.NewRedisDeduper(redis.NewClient(parseRedisOptions(redisConn)), ttl)
	}

	srv, err := mockapi.New(cfg)
	if err != nil {
		log.Fatalf("mockapi: %v", err)
	}
	e := srv.Echo()

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("MOCKAPI_PORT"); ok {
		listenAddr = ":" + val
	}
	log.WithField("addr", listenAddr).Info("mockapi: listening")
	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisOptions accepts a redis:// URL or the "host:port,password=...,ssl=true"
// connection string form.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
