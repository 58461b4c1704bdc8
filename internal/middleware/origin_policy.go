package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lucentpay-checkout/pkg/logger"
)

// OriginPolicy decides which browser origins may call the checkout API.
type OriginPolicy struct {
	allowList        map[string]struct{}
	trustedDomain    string
	storefrontSuffix string
}

// NewOriginPolicy builds a policy from an explicit allow-list plus the built-in host rules:
// the trusted domain, its www subdomain and any host under storefrontSuffix.
func NewOriginPolicy(allowList []string, trustedDomain, storefrontSuffix string) *OriginPolicy {
	p := &OriginPolicy{
		allowList:        make(map[string]struct{}, len(allowList)),
		trustedDomain:    strings.ToLower(strings.TrimSpace(trustedDomain)),
		storefrontSuffix: strings.ToLower(strings.TrimSpace(storefrontSuffix)),
	}
	for _, origin := range allowList {
		if origin = strings.TrimSpace(origin); origin != "" {
			p.allowList[origin] = struct{}{}
		}
	}
	if p.storefrontSuffix != "" && !strings.HasPrefix(p.storefrontSuffix, ".") {
		p.storefrontSuffix = "." + p.storefrontSuffix
	}
	return p
}

// IsAllowed reports whether a request carrying the given Origin header may proceed.
// An empty origin (curl, server-to-server) is always allowed.
func (p *OriginPolicy) IsAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	if p == nil {
		return false
	}
	if _, ok := p.allowList[origin]; ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	if p.trustedDomain != "" && (host == p.trustedDomain || host == "www."+p.trustedDomain) {
		return true
	}
	if p.storefrontSuffix != "" && strings.HasSuffix(host, p.storefrontSuffix) && len(host) > len(p.storefrontSuffix) {
		return true
	}
	return false
}

// CORSMiddleware enforces the policy. Rejected origins are aborted with 403 before any
// handler runs; permitted preflights answer 204.
func CORSMiddleware(policy *OriginPolicy) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			allowed := policy.IsAllowed(origin)
			if !allowed {
				logger.Warn("CORS: origin not allowed", map[string]interface{}{"origin": origin})
			}
			return allowed
		},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	})
}
