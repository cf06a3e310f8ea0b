package filesystem

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

type contentKind struct {
	mime string
	text bool
}

// sniff classifies content by its leading bytes
func sniff(data []byte) contentKind {
	if len(data) == 0 {
		return contentKind{mime: "text/plain", text: true}
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return contentKind{mime: mt.String(), text: true}
		}
	}
	// Text in a legacy encoding may sniff as octet-stream; NUL bytes never occur in it.
	if mt.Is("application/octet-stream") && !bytes.ContainsRune(data, 0) {
		return contentKind{mime: "text/plain", text: true}
	}
	return contentKind{mime: mt.String()}
}

// decode converts data to UTF-8, returning the detected charset name
func decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), "unknown", nil
	}

	r, err := charset.NewReaderLabel(res.Charset, bytes.NewReader(data))
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), strings.ToLower(res.Charset), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", "", err
	}
	return string(out), strings.ToLower(res.Charset), nil
}

// DetectMIME reports the content type of data
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}
