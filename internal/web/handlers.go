package web

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// fileHandler returns the static file handler rooted at the document root.
// Directory listings, MIME typing and range requests follow net/http's
// standard file serving behavior.
func (s *Server) fileHandler() http.HandlerFunc {
	fs := http.FileServer(http.Dir(s.config.Root))
	return func(w http.ResponseWriter, r *http.Request) {
		s.setSecurityHeaders(w)

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		fs.ServeHTTP(w, r)
	}
}

// setSecurityHeaders sets security headers for HTTP responses
func (s *Server) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// logRequest logs an HTTP request with timing information
func (s *Server) logRequest(r *http.Request, statusCode int, duration time.Duration) {
	s.logger.Info("HTTP request processed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
		zap.Int("status", statusCode),
		zap.Duration("duration", duration),
	)
}

// loggingMiddleware provides request logging middleware
func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer that captures the status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(wrapped, r)

		s.logRequest(r, wrapped.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// PrintStartupInfo writes the human-readable startup banner: effective URLs
// for local and network access, the self-signed trust warning, and how to
// stop the server.
func (s *Server) PrintStartupInfo(w io.Writer) {
	port := s.config.Port
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	fmt.Fprintf(w, "HTTPS server running on https://%s:%d\n", s.config.Host, port)
	fmt.Fprintf(w, "  Local:   https://localhost:%d\n", port)
	for _, ip := range networkIPs() {
		fmt.Fprintf(w, "  Network: https://%s:%d\n", ip, port)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Warning: the certificate is self-signed, browsers will flag it as untrusted.")
	fmt.Fprintln(w, "Use the browser's advanced settings to proceed anyway.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop")
}

// networkIPs returns the IPv4 addresses of non-loopback interfaces
func networkIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	return ips
}
