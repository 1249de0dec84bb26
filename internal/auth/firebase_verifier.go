// Package auth はFirebase ID トークンの検証を提供する。
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/grosync/internal/metrics"
)

// maxJWKSBytes はJWKSレスポンスとして読み込む最大バイト数。
const maxJWKSBytes = 1 << 20

// clockSkew はexp/iat/auth_timeの検証で許容する時計のずれ。
// Firebase Admin SDKと同じ5分とする。
const clockSkew = 5 * time.Minute

// jwksFetchTimeout は共有するJWKS取得1回あたりの上限時間。
const jwksFetchTimeout = 10 * time.Second

// minForcedRefreshInterval は未知のkidによる強制再取得の最小間隔。
// 任意のkidを付けたトークンで取得先へのリクエストを量産させないための下限。
const minForcedRefreshInterval = 30 * time.Second

var (
	// ErrUnknownKey はトークンのkidに対応する公開鍵が見つからないことを表す。
	ErrUnknownKey = errors.New("unknown signing key")
	// ErrInvalidIssuer はissクレームがプロジェクトの発行者と一致しないことを表す。
	ErrInvalidIssuer = errors.New("invalid issuer")
	// ErrInvalidAudience はaudクレームがプロジェクトIDと一致しないことを表す。
	ErrInvalidAudience = errors.New("invalid audience")
	// ErrMissingSubject はsubクレームが空であることを表す。
	ErrMissingSubject = errors.New("missing subject")
	// ErrTokenExpired はexpが許容誤差を超えて過去であることを表す。
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenNotYetValid はiatまたはauth_timeが許容誤差を超えて未来であることを表す。
	ErrTokenNotYetValid = errors.New("token used before issued")
)

// Claims はFirebase ID トークンのクレーム。
// subがFirebase UIDに対応する。
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	jwt.StandardClaims
}

// TokenVerifier はBearerトークンを検証してクレームを返す。
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// VerifierConfig はFirebaseVerifierの設定。
type VerifierConfig struct {
	ProjectID string
	JWKSURL   string
	// CacheTTL はCache-Controlにmax-ageが無い場合の保持期間。
	CacheTTL time.Duration
}

// Issuer はissクレームの期待値を返す。
func (c VerifierConfig) Issuer() string {
	return "https://securetoken.google.com/" + c.ProjectID
}

// FirebaseVerifier はGoogleが公開するJWKSでFirebase ID トークンを検証する。
// JWKSはKeySetCacheに保持し、期限切れか未知のkidに出会った時だけ再取得する。
type FirebaseVerifier struct {
	config  VerifierConfig
	client  *http.Client
	cache   KeySetCache
	metrics metrics.MetricsCollector
	group   singleflight.Group
	now     func() time.Time

	mu              sync.Mutex
	lastForcedFetch time.Time
}

// NewFirebaseVerifier はFirebaseVerifierを生成する。
// clientにはsecurity.OutboundGuardで生成したクライアントを渡す。
func NewFirebaseVerifier(
	config VerifierConfig,
	client *http.Client,
	cache KeySetCache,
	collector metrics.MetricsCollector,
) *FirebaseVerifier {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &FirebaseVerifier{
		config:  config,
		client:  client,
		cache:   cache,
		metrics: collector,
		now:     time.Now,
	}
}

// Verify はRS256署名、kid、exp/iat/auth_time、iss、aud、subを検証する。
// 時刻のクレームはclockSkewの範囲で発行元との時計のずれを許容する。
// 返すエラーのメッセージはそのままクライアントへの理由として使える。
func (v *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims := &Claims{}

	// jwt-goの標準検証は時計のずれを許容しないため、時刻の検証はverifyTimesで行う
	parser := &jwt.Parser{SkipClaimsValidation: true}
	_, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Inner != nil {
			return nil, ve.Inner
		}
		return nil, err
	}

	if err := v.verifyTimes(claims); err != nil {
		return nil, err
	}
	if !claims.VerifyIssuer(v.config.Issuer(), true) {
		return nil, ErrInvalidIssuer
	}
	if !claims.VerifyAudience(v.config.ProjectID, true) {
		return nil, ErrInvalidAudience
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

// verifyTimes はexp、iat、auth_timeをclockSkewの許容範囲で検証する。
func (v *FirebaseVerifier) verifyTimes(claims *Claims) error {
	if claims.ExpiresAt == 0 || claims.IssuedAt == 0 {
		return errors.New("token must carry exp and iat")
	}

	now := v.now()
	if now.Add(-clockSkew).Unix() > claims.ExpiresAt {
		return ErrTokenExpired
	}
	latest := now.Add(clockSkew).Unix()
	if claims.IssuedAt > latest {
		return ErrTokenNotYetValid
	}
	if claims.AuthTime > latest {
		return fmt.Errorf("%w: auth_time is in the future", ErrTokenNotYetValid)
	}
	return nil
}

// publicKey はkidに対応するRSA公開鍵を返す。
// キャッシュに無ければ1回だけ強制的に再取得する（鍵のローテーション対応）。
func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set, err := v.keySet(ctx, false)
	if err != nil {
		return nil, err
	}
	if key := lookupRSAKey(set, kid); key != nil {
		return key, nil
	}

	if !v.allowForcedFetch() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}

	set, err = v.keySet(ctx, true)
	if err != nil {
		return nil, err
	}
	if key := lookupRSAKey(set, kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

func (v *FirebaseVerifier) allowForcedFetch() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if !v.lastForcedFetch.IsZero() && now.Sub(v.lastForcedFetch) < minForcedRefreshInterval {
		return false
	}
	v.lastForcedFetch = now
	return true
}

// keySet はJWKSを返す。forceがfalseならキャッシュを優先する。
// 同時に複数のリクエストが取得を必要とした場合は1回の取得にまとめる。
func (v *FirebaseVerifier) keySet(ctx context.Context, force bool) (*jose.JSONWebKeySet, error) {
	if !force {
		raw, err := v.cache.Get(ctx)
		if err != nil {
			slog.Warn("failed to read cached jwks, fetching",
				slog.String("error", err.Error()),
			)
		}
		if raw != nil {
			set, err := parseKeySet(raw)
			if err == nil {
				return set, nil
			}
			slog.Warn("cached jwks is corrupt, fetching",
				slog.String("error", err.Error()),
			)
		}
	}

	// 取得は待機中の全リクエストで共有するため、最初の呼び出し元の切断で中断させない
	result, err, _ := v.group.Do("jwks", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jwksFetchTimeout)
		defer cancel()
		return v.fetch(fetchCtx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*jose.JSONWebKeySet), nil
}

// fetch はJWKSを取得してキャッシュに保存する。
func (v *FirebaseVerifier) fetch(ctx context.Context) (set *jose.JSONWebKeySet, err error) {
	start := v.now()
	defer func() {
		v.metrics.RecordJWKSFetch(err, v.now().Sub(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch jwks: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read jwks: %w", err)
	}

	set, err = parseKeySet(raw)
	if err != nil {
		return nil, err
	}

	ttl := cacheTTL(resp.Header.Get("Cache-Control"), v.config.CacheTTL)
	if err := v.cache.Set(ctx, raw, ttl); err != nil {
		slog.Warn("failed to cache jwks",
			slog.String("error", err.Error()),
		)
	}

	slog.Info("jwks refreshed",
		slog.Int("keys", len(set.Keys)),
		slog.Duration("ttl", ttl),
	)

	return set, nil
}

// parseKeySet はJWKSのJSONをパースする。鍵が1つも無い場合はエラーとする。
func parseKeySet(raw []byte) (*jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to parse jwks: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, errors.New("jwks contains no keys")
	}
	return &set, nil
}

func lookupRSAKey(set *jose.JSONWebKeySet, kid string) *rsa.PublicKey {
	for _, k := range set.Key(kid) {
		if pub, ok := k.Key.(*rsa.PublicKey); ok {
			return pub
		}
	}
	return nil
}

// cacheTTL はCache-Controlのmax-ageを保持期間として返す。
// max-ageが無い、または不正な場合はfallbackを返す。
func cacheTTL(cacheControl string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

var _ TokenVerifier = (*FirebaseVerifier)(nil)
