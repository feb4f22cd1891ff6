package reactor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/httpmsg"
	"github.com/helouazizi/localserver/internal/mimetypes"
	"github.com/helouazizi/localserver/internal/poller"
	"github.com/helouazizi/localserver/internal/respond"
)

// processRequest runs the full pipeline of spec.md §4.D once a connection's
// read buffer holds one complete request: served-upload shortcut, route
// selection, method gating, upload handling, path resolution, CGI
// offload, and static serving.
func (r *Reactor) processRequest(token uint64) {
	conn, ok := r.conns[token]
	if !ok {
		return
	}
	serverIdx := conn.serverIdx

	req, err := httpmsg.Parse(conn.readBuffer)
	if err != nil || req.Method == "" {
		r.sendError(token, 400)
		return
	}

	serverCfg := &r.cfg.Servers[serverIdx]

	if req.Method == "GET" && r.tryServeUploadFile(token, serverIdx, req.Path) {
		return
	}

	route := selectRoute(serverCfg.Routes, req.Path)
	if route == nil {
		r.sendError(token, 404)
		return
	}

	if !methodAllowed(route, req.Method) {
		r.sendError(token, 405)
		return
	}

	isCGI := isCGIRoute(route, req.Path)

	if (req.Method == "POST" || req.Method == "PUT") && !isCGI {
		uploadDir := route.UploadDir
		if uploadDir == "" {
			uploadDir = filepath.Join(route.Root, "uploads")
		}

		uploaded := false
		if form, ok := httpmsg.ParseMultipart(req.Headers, req.Body); ok {
			if err := saveMultipartUpload(form, uploadDir); err == nil {
				uploaded = true
			} else {
				r.log.Warn("multipart upload failed", zap.Error(err))
			}
		} else if len(req.Body) > 0 {
			filename := extractRawUploadFilename(req.Path, route.Path, req.Headers)
			if err := saveRawUpload(req.Body, uploadDir, filename); err == nil {
				uploaded = true
			} else {
				r.log.Warn("raw upload failed", zap.Error(err))
			}
		}

		if uploaded {
			r.sendText(token, 201, "Upload Successful", "text/plain")
			return
		}
	}

	relative := strings.TrimPrefix(req.Path, route.Path)
	relative = strings.TrimPrefix(relative, "/")
	fullPath := filepath.Join(route.Root, relative)

	if info, statErr := os.Stat(fullPath); statErr == nil && info.IsDir() {
		switch {
		case route.Index != "":
			fullPath = filepath.Join(fullPath, route.Index)
		case route.Autoindex:
			r.sendError(token, 501)
			return
		default:
			r.sendError(token, 403)
			return
		}
	}

	if isCGI {
		r.startCGI(token, route, req, fullPath)
		return
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		r.sendError(token, 404)
		return
	}
	r.sendBytes(token, 200, content, mimetypes.ForPath(fullPath))
}

// tryServeUploadFile implements the GET shortcut that serves a file
// previously saved under a route's upload_dir back out under either
// "/<upload-dir-basename>/<file>" or "<route.Path>/<file>". Only routes
// with an upload_dir whose methods allow GET are considered.
func (r *Reactor) tryServeUploadFile(token uint64, serverIdx int, path string) bool {
	serverCfg := &r.cfg.Servers[serverIdx]

	for i := range serverCfg.Routes {
		route := &serverCfg.Routes[i]
		if route.UploadDir == "" || !methodAllowed(route, "GET") {
			continue
		}

		base := filepath.Base(route.UploadDir)
		if base == "" || base == "." || base == "/" {
			continue
		}
		uploadPrefix := "/" + base

		var matched string
		if pathMatchesRoute(path, uploadPrefix) {
			matched = uploadPrefix
		} else if pathMatchesRoute(path, route.Path) {
			matched = route.Path
		} else {
			continue
		}

		relative := strings.TrimPrefix(strings.TrimPrefix(path, matched), "/")
		if relative == "" {
			continue
		}

		fullPath := filepath.Join(route.UploadDir, relative)
		if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
			r.sendError(token, 403)
			return true
		}

		content, err := os.ReadFile(fullPath)
		if err != nil {
			r.sendError(token, 404)
			return true
		}
		r.sendBytes(token, 200, content, mimetypes.ForPath(fullPath))
		return true
	}
	return false
}

func (r *Reactor) sendError(token uint64, code int) {
	conn, ok := r.conns[token]
	if !ok {
		return
	}
	var errorPages map[int]string
	if conn.serverIdx < len(r.cfg.Servers) {
		errorPages = r.cfg.Servers[conn.serverIdx].ErrorPages
	}
	r.finalizeResponse(token, respond.Error(code, errorPages))
}

func (r *Reactor) sendText(token uint64, code int, body, contentType string) {
	r.finalizeResponse(token, respond.Text(code, contentType, body))
}

func (r *Reactor) sendBytes(token uint64, code int, body []byte, contentType string) {
	r.finalizeResponse(token, respond.Bytes(code, contentType, body))
}

func (r *Reactor) finalizeResponse(token uint64, response []byte) {
	conn, ok := r.conns[token]
	if !ok {
		return
	}
	conn.writeBuffer = response
	conn.bytesWritten = 0
	conn.state = StateWriteResponse
	conn.touch()

	statusCode := 200
	if n, err := strconv.Atoi(string(response[9:12])); err == nil {
		statusCode = n
	}
	r.metrics.ObserveResponse(statusCode)

	if err := r.poll.Modify(conn.fd, token, poller.Writable); err != nil {
		r.log.Warn("reregister for write failed", zap.String("conn_id", conn.id.String()), zap.Error(err))
		r.closeConnection(token)
	}
}
