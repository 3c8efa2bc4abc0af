package ticket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ambient-quiz-service/internal/domain"
	"ambient-quiz-service/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAvatarBaseURL = "https://unavatar.io/twitter/"
	DefaultAvatarTimeout = 10 * time.Second
	DefaultAvatarTTL     = 24 * time.Hour

	avatarUserAgent = "Ambient-Quiz-App/1.0"
	maxAvatarBytes  = 5 << 20
)

// AvatarSource resolves a profile image for a username.
type AvatarSource interface {
	FetchAvatar(ctx context.Context, username string) (domain.Avatar, error)
}

// HTTPAvatarFetcher downloads avatars from an unavatar-style service.
type HTTPAvatarFetcher struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPAvatarFetcher(baseURL string, timeout time.Duration, client *http.Client) *HTTPAvatarFetcher {
	if baseURL == "" {
		baseURL = DefaultAvatarBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = DefaultAvatarTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAvatarFetcher{baseURL: baseURL, timeout: timeout, client: client}
}

func (f *HTTPAvatarFetcher) FetchAvatar(ctx context.Context, username string) (domain.Avatar, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return domain.Avatar{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+url.PathEscape(username), nil)
	if err != nil {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Err: err}
	}
	req.Header.Set("User-Agent", avatarUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) == 0 {
		return domain.Avatar{}, &domain.AvatarUnavailableError{Username: username, Err: fmt.Errorf("empty body")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return domain.Avatar{Data: data, ContentType: contentType}, nil
}

// AvatarCache stores avatars by username; memory and redis both implement it.
type AvatarCache interface {
	GetAvatar(ctx context.Context, username string) (domain.Avatar, bool, error)
	SetAvatar(ctx context.Context, username string, avatar domain.Avatar, ttl time.Duration) error
}

// CachedAvatarSource fronts an AvatarSource with a cache. Concurrent misses
// for the same username share one upstream fetch.
type CachedAvatarSource struct {
	source AvatarSource
	cache  AvatarCache
	ttl    time.Duration
	group  singleflight.Group
}

func NewCachedAvatarSource(source AvatarSource, cache AvatarCache, ttl time.Duration) *CachedAvatarSource {
	if ttl <= 0 {
		ttl = DefaultAvatarTTL
	}
	return &CachedAvatarSource{source: source, cache: cache, ttl: ttl}
}

func (c *CachedAvatarSource) FetchAvatar(ctx context.Context, username string) (domain.Avatar, error) {
	log := logging.WithContext(ctx).WithField("username", username)
	key := strings.ToLower(username)

	if avatar, ok, err := c.cache.GetAvatar(ctx, key); err != nil {
		log.WithError(err).Warn("avatar cache read failed")
	} else if ok {
		return avatar, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		avatar, err := c.source.FetchAvatar(ctx, username)
		if err != nil {
			return domain.Avatar{}, err
		}
		if err := c.cache.SetAvatar(ctx, key, avatar, c.ttl); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"ttl": c.ttl.String()}).Warn("avatar cache write failed")
		}
		return avatar, nil
	})
	if err != nil {
		return domain.Avatar{}, err
	}
	return v.(domain.Avatar), nil
}
