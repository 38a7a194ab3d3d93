package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/quillard/formulaire/dbopen"
	"github.com/quillard/formulaire/docx"
	"github.com/quillard/formulaire/guichet"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := guichet.New(&guichet.Config{UploadsDir: t.TempDir()}, nil, guichet.WithDB(dbopen.OpenMemory(t)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	return newRouter(svc, nil, 16<<20)
}

func buildTemplate(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	f.Write(body.Bytes())
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestUploadChatGenerate(t *testing.T) {
	r := newTestRouter(t)

	// Upload.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "contract.docx", docxContentType,
		buildTemplate(t, "For {CompanyName}, dated {Date}.")))
	if rec.Code != 201 {
		t.Fatalf("upload status: %d body %s", rec.Code, rec.Body.String())
	}
	var up struct {
		SessionID    string `json:"session_id"`
		Placeholders []struct {
			Name   string `json:"name"`
			Filled bool   `json:"filled"`
		} `json:"placeholders"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatal(err)
	}
	if up.SessionID == "" || len(up.Placeholders) != 2 || up.Prompt == "" {
		t.Fatalf("upload response: %+v", up)
	}

	// Two answers, then confirm.
	for _, msg := range []string{"Acme Inc", "01/15/2024", "please generate document"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, postJSON(t, "/api/chat", map[string]string{
			"session_id": up.SessionID,
			"message":    msg,
		}))
		if rec.Code != 200 {
			t.Fatalf("chat %q status: %d body %s", msg, rec.Code, rec.Body.String())
		}
	}
	var turn struct {
		Done            bool `json:"done"`
		ReadyToGenerate bool `json:"ready_to_generate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &turn); err != nil {
		t.Fatal(err)
	}
	if !turn.Done || !turn.ReadyToGenerate {
		t.Fatalf("final turn: %+v", turn)
	}

	// Generate.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents/"+up.SessionID+"/generate", nil))
	if rec.Code != 200 {
		t.Fatalf("generate status: %d body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != docxContentType {
		t.Fatalf("content type: %q", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition: %q", cd)
	}

	text, err := docx.ExtractText(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Acme Inc") || !strings.Contains(text, "01/15/2024") {
		t.Fatalf("generated text: %q", text)
	}

	// History shows the generation.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))
	if rec.Code != 200 {
		t.Fatalf("history status: %d", rec.Code)
	}
	var recs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("history: %v", recs)
	}
}

func TestUploadErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name     string
		filename string
		ct       string
		data     []byte
		want     int
	}{
		{"wrong extension", "doc.pdf", docxContentType, buildTemplate(t, "{A}"), 400},
		{"wrong content type", "doc.docx", "text/plain", buildTemplate(t, "{A}"), 400},
		{"not an archive", "doc.docx", docxContentType, []byte("plain text"), 400},
		{"no placeholders", "doc.docx", docxContentType, buildTemplate(t, "static text"), 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, uploadRequest(t, tt.filename, tt.ct, tt.data))
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// Missing multipart field.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/documents", strings.NewReader("no file"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	r.ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("missing field status: %d", rec.Code)
	}
}

func TestSessionErrors(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, postJSON(t, "/api/chat", map[string]string{
		"session_id": "sess_missing", "message": "hi",
	}))
	if rec.Code != 404 {
		t.Fatalf("chat unknown session: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents/sess_missing/generate", nil))
	if rec.Code != 404 {
		t.Fatalf("generate unknown session: %d", rec.Code)
	}
}

func TestGenerateBeforeComplete(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "doc.docx", docxContentType, buildTemplate(t, "{A} and {B}")))
	if rec.Code != 201 {
		t.Fatalf("upload: %d", rec.Code)
	}
	var up struct {
		SessionID string `json:"session_id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &up)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents/"+up.SessionID+"/generate", nil))
	if rec.Code != 409 {
		t.Fatalf("generate before complete: got %d, want 409", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	svc, err := guichet.New(&guichet.Config{UploadsDir: t.TempDir()}, nil, guichet.WithDB(dbopen.OpenMemory(t)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	r := newRouter(svc, nil, 128) // tiny cap

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "doc.docx", docxContentType, buildTemplate(t, "{A}")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", rec.Code)
	}
}
