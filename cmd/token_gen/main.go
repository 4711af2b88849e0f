package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/hikvision-bridge/internal/auth"
	"github.com/technosupport/hikvision-bridge/internal/tokens"
)

func main() {
	operator := flag.String("operator", "admin", "operator name (sub claim)")
	scope := flag.String("scope", string(tokens.ScopeRead), "token scope: read or control")
	ttl := flag.Duration("ttl", tokens.DefaultTTL, "token lifetime")
	revoke := flag.String("revoke", "", "revoke the token with this jti instead of issuing one")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "redis address used for -revoke")
	flag.Parse()

	if *revoke != "" {
		if *redisAddr == "" {
			log.Fatal("-revoke needs -redis or REDIS_ADDR")
		}
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		if err := auth.NewRedisRevocations(rdb).Revoke(context.Background(), *revoke, *ttl); err != nil {
			log.Fatalf("revoke failed: %v", err)
		}
		fmt.Printf("revoked %s for %s\n", *revoke, *ttl)
		return
	}

	key := os.Getenv("JWT_SIGNING_KEY")
	if key == "" {
		log.Fatal("JWT_SIGNING_KEY is not set")
	}

	s := tokens.Scope(*scope)
	if s != tokens.ScopeRead && s != tokens.ScopeControl {
		log.Fatalf("unknown scope %q", *scope)
	}

	token, err := tokens.NewManager(key).GenerateToken(*operator, s, *ttl)
	if err != nil {
		log.Fatalf("token generation failed: %v", err)
	}
	fmt.Println(token)
}
