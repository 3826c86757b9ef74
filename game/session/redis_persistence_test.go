package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestRedisPersistence(t *testing.T) {
	_, client := newTestRedis(t)
	exercisePersistence(t, NewRedisPersistence(client, newTestConfigManager(t), 0, nil))
}

func TestRedisPersistence_RestoredLevelLogs(t *testing.T) {
	_, client := newTestRedis(t)
	log, logs := newObservedLogger()
	checkRestoredLevelLogs(t, NewRedisPersistence(client, newTestConfigManager(t), 0, log), logs)
}

func TestRedisPersistence_KeyLayout(t *testing.T) {
	srv, client := newTestRedis(t)
	p := NewRedisPersistence(client, newTestConfigManager(t), 0, nil)

	if err := p.Save(newPlayedSession(t, "ab12")); err != nil {
		t.Fatal(err)
	}

	if !srv.Exists("skatesim:session:ab12") {
		t.Error("Expected session key")
	}
	members, err := srv.Members("skatesim:sessions")
	if err != nil || len(members) != 1 || members[0] != "ab12" {
		t.Errorf("Expected index to hold ab12, got %v (%v)", members, err)
	}
}

func TestRedisPersistence_TTLExpiry(t *testing.T) {
	srv, client := newTestRedis(t)
	p := NewRedisPersistence(client, newTestConfigManager(t), time.Minute, nil)

	if err := p.Save(newPlayedSession(t, "ab12")); err != nil {
		t.Fatal(err)
	}
	if ttl := srv.TTL("skatesim:session:ab12"); ttl != time.Minute {
		t.Errorf("Expected 1m ttl, got %v", ttl)
	}

	srv.FastForward(2 * time.Minute)

	ids, err := p.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected expired session dropped from listing, got %v", ids)
	}
	if p.Exists("ab12") {
		t.Error("Expected expired session to be gone")
	}
}

func TestDialRedisPersistence(t *testing.T) {
	srv := miniredis.RunT(t)
	configs := newTestConfigManager(t)

	p, err := DialRedisPersistence(context.Background(), srv.Addr(), "", 0, configs, 0, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer p.Close()

	manager := NewManagerWithPersistence(p, nil)
	if _, err := manager.Create("", "classic", configs.GetDefault()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ids, _ := p.ListAll()
	if len(ids) != 1 {
		t.Errorf("Expected created session stored in redis, got %v", ids)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := DialRedisPersistence(ctx, "127.0.0.1:1", "", 0, configs, 0, nil); err == nil {
		t.Error("Expected dial to fail when nothing is listening")
	}
}
