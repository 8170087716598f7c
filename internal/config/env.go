package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// Optional variables used by the per-concern loaders.  A malformed
// value falls back to the default rather than halting startup; only the
// settings in Load that carry money are fatal when invalid.

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch strings.ToLower(os.Getenv(k)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}

// envSet reads a comma separated list into an upper-cased set.
func envSet(k, d string) map[string]bool {
    set := map[string]bool{}
    for _, p := range strings.Split(envStr(k, d), ",") {
        if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
            set[p] = true
        }
    }
    return set
}
