package middlewares

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const ctxClientIPKey ctxKey = "client_ip"

// ParseTrustedProxies acepta IPs sueltas o CIDRs. Las entradas inválidas se ignoran.
func ParseTrustedProxies(entries []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func isTrusted(nets []*net.IPNet, ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// resolveClientIP: X-Forwarded-For solo cuenta si el peer es un proxy confiable.
// Se recorre de derecha a izquierda y gana el primer salto no confiable.
func resolveClientIP(r *http.Request, trusted []*net.IPNet) string {
	peer := remoteHost(r)
	if !isTrusted(trusted, peer) {
		return peer
	}
	xf := r.Header.Get("X-Forwarded-For")
	if xf == "" {
		return peer
	}
	hops := strings.Split(xf, ",")
	candidate := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			break
		}
		candidate = hop
		if !isTrusted(trusted, hop) {
			break
		}
	}
	return candidate
}

// WithClientIP resuelve una sola vez la IP del cliente y la deja en el contexto
// para rate limiting, logging y audit.
func WithClientIP(trustedProxies []string) Middleware {
	trusted := ParseTrustedProxies(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxClientIPKey, resolveClientIP(r, trusted))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP devuelve la IP resuelta por WithClientIP; sin ese middleware usa RemoteAddr.
func clientIP(r *http.Request) string {
	if v, ok := r.Context().Value(ctxClientIPKey).(string); ok && v != "" {
		return v
	}
	return remoteHost(r)
}
