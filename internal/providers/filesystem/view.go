package filesystem

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".svg": true,
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".log": true, ".go": true, ".py": true,
	".js": true, ".ts": true, ".sh": true, ".json": true, ".yaml": true,
	".yml": true, ".toml": true, ".csv": true, ".xml": true, ".ini": true,
	".cfg": true, ".conf": true,
}

const pdfJS = "https://cdnjs.cloudflare.com/ajax/libs/pdf.js/3.11.174/pdf.min.js"

var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; padding: 16px; font-family: sans-serif; background: #f5f5f5; }
pre { white-space: pre-wrap; background: #fff; padding: 12px; }
img { max-width: 100%; }
canvas { display: block; margin: 0 auto 16px; box-shadow: 0 1px 3px rgba(0,0,0,.3); }
</style>
{{- if eq .Kind "pdf"}}
<script src="{{.PDFScript}}"></script>
{{- end}}
</head>
<body>
{{- if eq .Kind "image"}}
<img id="image" alt="{{.Name}}">
<script>
const fileBase64 = "{{.Data}}";
document.getElementById("image").src = "data:{{.MimeType}};base64," + fileBase64;
</script>
{{- else if eq .Kind "pdf"}}
<div id="pages"></div>
<script>
const fileBase64 = "{{.Data}}";
const raw = atob(fileBase64);
const bytes = new Uint8Array(raw.length);
for (let i = 0; i < raw.length; i++) { bytes[i] = raw.charCodeAt(i); }
pdfjsLib.getDocument({ data: bytes }).promise.then(async (pdf) => {
  const container = document.getElementById("pages");
  for (let n = 1; n <= pdf.numPages; n++) {
    const page = await pdf.getPage(n);
    const viewport = page.getViewport({ scale: 1.5 });
    const canvas = document.createElement("canvas");
    canvas.width = viewport.width;
    canvas.height = viewport.height;
    container.appendChild(canvas);
    await page.render({ canvasContext: canvas.getContext("2d"), viewport }).promise;
  }
});
</script>
{{- else if eq .Kind "html"}}
{{.HTML}}
{{- else}}
<pre>{{.Text}}</pre>
{{- end}}
</body>
</html>
`))

type viewPage struct {
	Title     string
	Name      string
	Kind      string
	MimeType  string
	Data      string
	PDFScript string
	HTML      template.HTML
	Text      string
}

// View renders an absolute path as a standalone HTML page
func (f *FS) View(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		return nil, ErrNotAbsolute
	}
	if _, err := statFile(path); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)
	page := viewPage{Title: name, Name: name}

	switch {
	case imageExts[ext], ext == ".pdf", ext == ".html", ext == ".htm", textExts[ext]:
	default:
		return nil, ErrUnsupportedView
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch {
	case imageExts[ext]:
		page.Kind = "image"
		page.MimeType = mimetype.Detect(data).String()
		if ext == ".svg" {
			page.MimeType = "image/svg+xml"
		}
		page.Data = base64.StdEncoding.EncodeToString(data)
	case ext == ".pdf":
		page.Kind = "pdf"
		page.PDFScript = pdfJS
		page.Data = base64.StdEncoding.EncodeToString(data)
	case ext == ".html" || ext == ".htm":
		page.Kind = "html"
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data)); err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				page.Title = title
			}
		}
		page.HTML = template.HTML(f.sanitizer.SanitizeBytes(data))
	default:
		if !sniff(data).text {
			return nil, ErrBinary
		}
		text, _, err := decode(data)
		if err != nil {
			return nil, err
		}
		page.Kind = "text"
		page.Text = text
	}

	var buf bytes.Buffer
	if err := viewTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
