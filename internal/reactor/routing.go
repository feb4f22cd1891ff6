package reactor

import (
	"path/filepath"
	"strings"

	"github.com/helouazizi/localserver/internal/config"
)

// pathMatchesRoute reports whether requestPath falls under routePath, the
// way the original implementation's longest-prefix matcher does: "/" is a
// catch-all, everything else must match exactly or be followed by "/".
func pathMatchesRoute(requestPath, routePath string) bool {
	if routePath == "/" {
		return strings.HasPrefix(requestPath, "/")
	}
	return requestPath == routePath || strings.HasPrefix(requestPath, strings.TrimSuffix(routePath, "/")+"/")
}

// selectRoute returns the longest-path route whose Path prefix-matches
// requestPath, nil if none does.
func selectRoute(routes []config.RouteConfig, requestPath string) *config.RouteConfig {
	var best *config.RouteConfig
	for i := range routes {
		r := &routes[i]
		if !pathMatchesRoute(requestPath, r.Path) {
			continue
		}
		if best == nil || len(r.Path) > len(best.Path) {
			best = r
		}
	}
	return best
}

// methodAllowed mirrors the convention that an empty Methods list means
// "all methods allowed".
func methodAllowed(route *config.RouteConfig, method string) bool {
	if len(route.Methods) == 0 {
		return true
	}
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// isCGIRoute reports whether path ends with the route's configured
// CGI extension.
func isCGIRoute(route *config.RouteConfig, path string) bool {
	return route.CGIExtension != "" && strings.HasSuffix(path, route.CGIExtension)
}

// extractRawUploadFilename resolves the filename to use for a raw (non
// -multipart) upload body: Content-Disposition first, then the request
// path's basename (if it differs from the matched route's own basename),
// falling back to a fixed default name.
func extractRawUploadFilename(requestPath, routePath string, headers map[string]string) string {
	if disposition, ok := headers["content-disposition"]; ok {
		if name, ok := filenameFromDisposition(disposition); ok {
			return name
		}
	}

	requestName := strings.TrimSpace(filepath.Base(requestPath))
	routeName := strings.TrimSpace(filepath.Base(routePath))
	if requestName != "" && requestName != "." && requestName != "/" && requestName != routeName {
		return requestName
	}

	return "upload.bin"
}

func filenameFromDisposition(disposition string) (string, bool) {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		value, ok := strings.CutPrefix(part, "filename=")
		if !ok {
			continue
		}
		unquoted := strings.Trim(strings.TrimSpace(value), `"'`)
		safe := strings.TrimSpace(filepath.Base(unquoted))
		if safe != "" && safe != "." && safe != "/" {
			return safe, true
		}
	}
	return "", false
}
