package telegrambot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// InputFile is a file parameter: a new upload, a file_id already stored on
// Telegram servers, or an HTTP URL Telegram should fetch.
// See https://core.telegram.org/bots/api#inputfile
//
// An upload is not safe to encode from several goroutines at once: the
// encoder records its attach marker on it.
type InputFile struct {
	fileID string
	url    string

	name string
	data []byte

	attach string
}

// FileID references a file already stored on Telegram servers.
func FileID(id string) *InputFile {
	return &InputFile{fileID: id}
}

// FileURL lets Telegram download the file from url.
func FileURL(url string) *InputFile {
	return &InputFile{url: url}
}

// FileBytes uploads data under the given file name.
func FileBytes(name string, data []byte) *InputFile {
	return &InputFile{name: name, data: data}
}

// FilePath reads a local file and uploads it.
func FilePath(path string) (*InputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return FileBytes(filepath.Base(path), data), nil
}

// IsUpload reports whether the file is sent as a multipart attachment.
func (f *InputFile) IsUpload() bool {
	return f != nil && f.fileID == "" && f.url == ""
}

// Name returns the upload file name.
func (f *InputFile) Name() string {
	return f.name
}

var errUnassignedAttachment = errors.New("upload has no attach marker, encode it with NewPayload")

// MarshalJSON renders the reference used in the JSON view of a request.
func (f *InputFile) MarshalJSON() ([]byte, error) {
	switch {
	case f.fileID != "":
		return json.Marshal(f.fileID)
	case f.url != "":
		return json.Marshal(f.url)
	case f.attach == "":
		return nil, errUnassignedAttachment
	default:
		return json.Marshal(attachPrefix + f.attach)
	}
}

const attachPrefix = "attach://"

// Attachment names one file field of a request. Field becomes the attach
// marker of an upload.
type Attachment struct {
	Field string
	File  *InputFile
}

// Uploader is implemented by requests that carry file fields, including
// files nested in JSON values such as InputMedia.
type Uploader interface {
	Files() []Attachment
}
