// Package geoip resolves IP addresses to network and location metadata
// via ip-api.com.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"spamtrace/internal/domain"
)

// Fields requested from ip-api.com. The free tier is HTTP only and capped
// at 45 requests/minute, hence the pacing gate below.
const fieldList = "status,message,country,countryCode,region,regionName,city,zip,lat,lon,isp,org,as,query"

// Resolver looks up IP metadata for a single scan run. The cache lives
// and dies with the run: each distinct address triggers at most one
// outbound call, failures included. Not safe for concurrent use; a run
// resolves sequentially.
type Resolver struct {
	baseURL     string
	minInterval time.Duration
	client      *http.Client
	log         *zap.Logger

	cache    map[string]*domain.GeoInfo
	lastCall time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func New(baseURL string, minInterval time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		baseURL:     baseURL,
		minInterval: minInterval,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
		cache:       make(map[string]*domain.GeoInfo),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Lookup never returns nil: a transport or decode failure is synthesized
// into a fail-status GeoInfo and cached like any other answer. The
// service itself reports private-range, invalid or rate-limited addresses
// as status=fail inside a 200 response, so those come back as-is.
func (r *Resolver) Lookup(ctx context.Context, ip string) *domain.GeoInfo {
	if info, ok := r.cache[ip]; ok {
		return info
	}

	r.pace()

	info, err := r.fetch(ctx, ip)
	if err != nil {
		r.log.Warn("geoip lookup failed", zap.String("ip", ip), zap.Error(err))
		info = &domain.GeoInfo{Status: "fail", Message: err.Error()}
	}
	r.cache[ip] = info
	return info
}

// pace enforces the minimum spacing between outbound calls. Cache hits
// never reach this point.
func (r *Resolver) pace() {
	if !r.lastCall.IsZero() {
		if elapsed := r.now().Sub(r.lastCall); elapsed < r.minInterval {
			r.sleep(r.minInterval - elapsed)
		}
	}
	r.lastCall = r.now()
}

func (r *Resolver) fetch(ctx context.Context, ip string) (*domain.GeoInfo, error) {
	url := fmt.Sprintf("%s/%s?fields=%s", r.baseURL, ip, fieldList)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info domain.GeoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}
