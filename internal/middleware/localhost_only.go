package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly restricts access to localhost plus a configured whitelist.
// Used for operational surfaces like /metrics and the admin API.
type LocalhostOnly struct {
	logger     *logrus.Logger
	allowedIPs []string // IP addresses or CIDR ranges
}

// NewLocalhostOnly creates the IP restriction middleware
func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	return &LocalhostOnly{
		logger:     logger,
		allowedIPs: allowedIPs,
	}
}

// Restrict rejects requests from addresses outside the whitelist
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !l.isAllowedIP(clientIP) {
			// ClientIP can differ from the socket peer behind a misconfigured
			// proxy chain; a loopback peer is still a direct local connection.
			remoteIP, _, _ := net.SplitHostPort(c.Request.RemoteAddr)
			if remoteIP == clientIP || !isLocalhost(remoteIP) {
				l.logger.WithFields(logrus.Fields{
					"client_ip": clientIP,
					"remote_ip": remoteIP,
					"path":      c.Request.URL.Path,
					"method":    c.Request.Method,
				}).Warn("rejected non-whitelisted access to restricted endpoint")

				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   "This API is only accessible from allowed IP addresses",
					"code":    "IP_NOT_ALLOWED",
				})
				return
			}
		}

		c.Next()
	}
}

func isLocalhost(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return ip == "localhost"
	}
	return parsedIP.IsLoopback()
}

func (l *LocalhostOnly) isAllowedIP(ip string) bool {
	if isLocalhost(ip) {
		return true
	}

	parsedIP := net.ParseIP(ip)
	for _, allowed := range l.allowedIPs {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err != nil {
				l.logger.WithField("cidr", allowed).Warn("invalid CIDR in IP whitelist")
				continue
			}
			if parsedIP != nil && ipNet.Contains(parsedIP) {
				return true
			}
			continue
		}
		if allowed == ip {
			return true
		}
		if allowedIP := net.ParseIP(allowed); allowedIP != nil && parsedIP != nil && allowedIP.Equal(parsedIP) {
			return true
		}
	}
	return false
}
