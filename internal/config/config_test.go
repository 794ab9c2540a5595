package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestLoadMemoryDriver(t *testing.T) {
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "Memory")
    t.Setenv("TOKEN_TTL_HOURS", "")
    t.Setenv("APP_ENV", "")
    t.Setenv("NOTIFY_QUEUE", "")

    cfg := Load()
    if cfg.StoreDriver != DriverMemory {
        t.Fatalf("driver = %q", cfg.StoreDriver)
    }
    if cfg.TokenTTL != 7*24*time.Hour {
        t.Fatalf("token ttl = %v", cfg.TokenTTL)
    }
    if cfg.Env != "dev" || cfg.NotifyQueue != "seats.confirmed" {
        t.Fatalf("unexpected defaults %+v", cfg)
    }
}

func TestLocationFallsBackToUTC(t *testing.T) {
    cfg := Config{EventTimezone: "Nowhere/Invalid"}
    if cfg.Location() != time.UTC {
        t.Fatal("expected UTC fallback")
    }
}

func TestRateLimitBuckets(t *testing.T) {
    t.Setenv("RATE_LIMIT_RESERVE_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_LOGIN_REFILL_EVERY", "3s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    if cfg.Reserve.Capacity != 1 {
        t.Fatalf("capacity should be clamped to 1, got %d", cfg.Reserve.Capacity)
    }
    if cfg.Login.RefillTokens != 1 || cfg.Login.RefillInterval != 3*time.Second {
        t.Fatalf("unexpected login bucket %+v", cfg.Login)
    }
    if cfg.TTL < 15*time.Second {
        t.Fatalf("ttl should be raised to five refill intervals, got %v", cfg.TTL)
    }
}

func TestEnvHelpers(t *testing.T) {
    t.Setenv("X_BOOL", "off")
    t.Setenv("X_INT", "abc")
    t.Setenv("X_DUR", "250ms")
    if envBool("X_BOOL", true) {
        t.Fatal("off should be false")
    }
    if envInt("X_INT", 7) != 7 {
        t.Fatal("invalid int should fall back")
    }
    if envDur("X_DUR", 0) != 250*time.Millisecond {
        t.Fatal("duration not parsed")
    }
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
    dir := t.TempDir()
    p := filepath.Join(dir, ".env")
    if err := os.WriteFile(p, []byte("SEAT_TEST_A=file\nSEAT_TEST_B=file\n"), 0o644); err != nil {
        t.Fatal(err)
    }
    t.Setenv("SEAT_TEST_A", "env")
    t.Setenv("SEAT_TEST_B", "")
    os.Unsetenv("SEAT_TEST_B")

    LoadEnvFile(p, filepath.Join(dir, "missing.env"))
    if os.Getenv("SEAT_TEST_A") != "env" || os.Getenv("SEAT_TEST_B") != "file" {
        t.Fatalf("A=%q B=%q", os.Getenv("SEAT_TEST_A"), os.Getenv("SEAT_TEST_B"))
    }
}
