package util

import (
	"io"
	"mime/multipart"
	"os"
)

// SaveUploadStreamed copies an uploaded multipart file to destPath in fixed
// chunks, enforcing maxBytes mid-stream rather than after a full read. If
// the cumulative byte count exceeds maxBytes, the partial file is deleted
// and ok is false; the caller responds 413.
func SaveUploadStreamed(file *multipart.FileHeader, destPath string, maxBytes int64) (ok bool, err error) {
	src, err := file.Open()
	if err != nil {
		return false, err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return false, err
	}
	defer dst.Close()

	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	var total int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				dst.Close()
				os.Remove(destPath)
				return false, nil
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				os.Remove(destPath)
				return false, werr
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(destPath)
			return false, readErr
		}
	}

	return true, nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ContentType infers a MIME type from a file extension.
func ContentType(ext string) string {
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".mid", ".midi":
		return "audio/midi"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
