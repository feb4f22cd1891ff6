package reactor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/helouazizi/localserver/internal/httpmsg"
)

// saveMultipartUpload writes every file-bearing part of form into
// uploadDir, creating it if necessary. Each file's name is re-taken
// through filepath.Base so a crafted "../../etc/passwd" filename can't
// escape uploadDir.
func saveMultipartUpload(form *httpmsg.MultipartForm, uploadDir string) error {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	for _, file := range form.Files {
		safeName := filepath.Base(file.FileName)
		if safeName == "" || safeName == "." || safeName == "/" {
			return fmt.Errorf("invalid filename %q", file.FileName)
		}
		dest := filepath.Join(uploadDir, safeName)
		if err := os.WriteFile(dest, file.Data, 0o644); err != nil {
			return fmt.Errorf("write upload: %w", err)
		}
	}
	return nil
}

// saveRawUpload writes an unparsed request body to uploadDir/filename.
func saveRawUpload(body []byte, uploadDir, filename string) error {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	safeName := filepath.Base(filename)
	dest := filepath.Join(uploadDir, safeName)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	return nil
}
